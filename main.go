package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-performer/config"
	"go-performer/debug"
	"go-performer/hw"
	"go-performer/midi"
	"go-performer/sequencer"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Debug {
		debug.Enable()
		defer debug.Disable()
	}

	// Load output calibration
	calibPath, err := cfg.CalibrationPath()
	if err != nil {
		fmt.Printf("Error resolving calibration path: %v\n", err)
		os.Exit(1)
	}
	calib, err := hw.LoadCalibration(calibPath, sequencer.CvOutputChannels)
	if err != nil {
		fmt.Printf("Error loading calibration: %v\n", err)
		os.Exit(1)
	}

	// Create hardware stages. The in-memory DAC and ADC stand in until a
	// converter backend is wired up.
	dio := &hw.Dio{}
	gateOutput := &hw.GateOutput{}
	cvOutput := hw.NewCvOutput(hw.NewMemoryDac(), calib, sequencer.CvOutputChannels)
	cvInput := hw.NewCvInput(hw.NewMemoryAdc(), sequencer.CvInputChannels)

	// Open the DIN MIDI ports, falling back to a loopback when absent
	var dinMidi midi.Endpoint
	din, err := midi.OpenDriverEndpoint(cfg.DinMidi.InPort, cfg.DinMidi.OutPort)
	if err != nil {
		fmt.Printf("DIN MIDI unavailable: %v\n", err)
		dinMidi = midi.NewLoopback()
	} else {
		defer din.Close()
		dinMidi = din
	}

	// USB MIDI attaches and detaches at runtime
	usbMidi := midi.NewUsbEndpoint()
	deviceMgr := midi.NewDeviceManager(usbMidi, cfg.UsbMidi.Match, cfg.DinMidi.InPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go deviceMgr.Run(ctx)

	// Create and start the engine
	project := sequencer.NewProject()
	engine := sequencer.NewEngine(project, dio, gateOutput, cvInput, cvOutput,
		dinMidi, usbMidi, hw.NewTickerTimer())
	engine.SetMessageHandler(func(message string) {
		fmt.Println(message)
	})
	engine.Init()

	fmt.Println("go-performer")
	fmt.Println("Connect MIDI devices any time - they'll be detected automatically")
	fmt.Println("")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	engine.ClockStart()

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			engine.Update()
		case <-sigs:
			engine.ClockStop()
			engine.Update()
			return
		}
	}
}
