package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "clock":
		watchClock()
	case "poll":
		pollDevices()
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list    - List all MIDI ports")
	fmt.Println("  clock   - Watch for incoming MIDI clock")
	fmt.Println("  poll    - Poll for device changes")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ins := midi.GetInPorts()
		outs := midi.GetOutPorts()
		ch <- result{ins: ins, outs: outs}
	}()

	select {
	case r := <-ch:
		for i, p := range r.ins {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! The MIDI backend is hung.")
	}
}

func watchClock() {
	ins := midi.GetInPorts()
	if len(ins) == 0 {
		fmt.Println("No MIDI inputs")
		return
	}
	in := ins[0]
	fmt.Printf("Listening on: %s\n", in.String())
	fmt.Println("Counting clock pulses, Ctrl+C to exit.")

	pulses := 0
	last := time.Now()
	stop, err := in.Listen(func(data []byte, ms int32) {
		for _, b := range data {
			switch b {
			case 0xF8:
				pulses++
				if pulses%24 == 0 {
					now := time.Now()
					bpm := 60.0 / now.Sub(last).Seconds()
					last = now
					fmt.Printf("  quarter note, %.1f BPM\n", bpm)
				}
			case 0xFA:
				fmt.Println("  START")
				pulses = 0
			case 0xFB:
				fmt.Println("  CONTINUE")
			case 0xFC:
				fmt.Println("  STOP")
			}
		}
	}, drivers.ListenConfig{TimeCode: true, ActiveSense: true})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer stop()

	select {}
}

func pollDevices() {
	fmt.Println("Polling for device changes every 2 seconds...")
	fmt.Println("Connect/disconnect devices to test. Ctrl+C to exit.")

	lastIn := ""
	lastOut := ""

	for {
		ins := midi.GetInPorts()
		outs := midi.GetOutPorts()

		var inNames, outNames []string
		for _, p := range ins {
			inNames = append(inNames, p.String())
		}
		for _, p := range outs {
			outNames = append(outNames, p.String())
		}

		currentIn := strings.Join(inNames, ",")
		currentOut := strings.Join(outNames, ",")

		if currentIn != lastIn || currentOut != lastOut {
			fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
			fmt.Printf("  Inputs: %v\n", inNames)
			fmt.Printf("  Outputs: %v\n", outNames)
		}

		lastIn = currentIn
		lastOut = currentOut
		time.Sleep(2 * time.Second)
	}
}
