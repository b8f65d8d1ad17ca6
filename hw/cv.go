package hw

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// Engine-native CV range in volts
const (
	VoltsMin = -5.0
	VoltsMax = 5.0
)

// Dac writes raw codes to the physical converter
type Dac interface {
	Write(channel int, code uint16)
}

// Adc reads raw codes from the physical converter
type Adc interface {
	Read(channel int) uint16
}

// Calibration maps volts to DAC codes per channel. Each channel carries one
// code per integer voltage step from VoltsMin to VoltsMax; codes between
// steps are linearly interpolated.
type Calibration struct {
	Channels []CalibrationChannel `json:"channels"`
}

// CalibrationChannel holds the per-voltage codes of one output
type CalibrationChannel struct {
	Codes []uint16 `json:"codes"`
}

const calibrationSteps = int(VoltsMax-VoltsMin) + 1

// DefaultCalibration returns an ideal linear table
func DefaultCalibration(channels int) *Calibration {
	c := &Calibration{Channels: make([]CalibrationChannel, channels)}
	for i := range c.Channels {
		codes := make([]uint16, calibrationSteps)
		for step := range codes {
			codes[step] = uint16(float64(step) / float64(calibrationSteps-1) * 65535.0)
		}
		c.Channels[i].Codes = codes
	}
	return c
}

// LoadCalibration reads a calibration table from disk, falling back to the
// ideal table when the file does not exist.
func LoadCalibration(path string, channels int) (*Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultCalibration(channels), nil
		}
		return nil, errors.Wrap(err, "reading calibration")
	}

	var c Calibration
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "parsing calibration")
	}
	for len(c.Channels) < channels {
		c.Channels = append(c.Channels, DefaultCalibration(1).Channels[0])
	}
	return &c, nil
}

// Save writes the calibration table to disk
func (c *Calibration) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Code converts volts to a DAC code for one channel
func (c *Calibration) Code(channel int, volts float64) uint16 {
	if channel < 0 || channel >= len(c.Channels) {
		return 0
	}
	codes := c.Channels[channel].Codes
	if len(codes) < 2 {
		return 0
	}

	if volts <= VoltsMin {
		return codes[0]
	}
	if volts >= VoltsMax {
		return codes[len(codes)-1]
	}

	pos := volts - VoltsMin
	step := int(pos)
	frac := pos - float64(step)
	if step >= len(codes)-1 {
		return codes[len(codes)-1]
	}
	lo := float64(codes[step])
	hi := float64(codes[step+1])
	return uint16(lo + (hi-lo)*frac)
}

// CvOutput buffers per-channel voltages and flushes them through the
// calibrated DAC on Update.
type CvOutput struct {
	mu       sync.Mutex
	dac      Dac
	calib    *Calibration
	channels []float64
}

// NewCvOutput creates a CV output stage over the given DAC
func NewCvOutput(dac Dac, calib *Calibration, channels int) *CvOutput {
	return &CvOutput{
		dac:      dac,
		calib:    calib,
		channels: make([]float64, channels),
	}
}

// Init zeroes all channels and writes them once
func (o *CvOutput) Init() {
	o.mu.Lock()
	for i := range o.channels {
		o.channels[i] = 0
	}
	o.mu.Unlock()
	o.Update()
}

// SetChannel buffers one channel voltage
func (o *CvOutput) SetChannel(channel int, volts float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if channel < 0 || channel >= len(o.channels) {
		return
	}
	o.channels[channel] = volts
}

// Channel returns the buffered voltage
func (o *CvOutput) Channel(channel int) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if channel < 0 || channel >= len(o.channels) {
		return 0
	}
	return o.channels[channel]
}

// Update writes all buffered voltages to the DAC
func (o *CvOutput) Update() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, volts := range o.channels {
		o.dac.Write(i, o.calib.Code(i, volts))
	}
}

// CvInput samples the analog inputs and normalizes to volts
type CvInput struct {
	mu       sync.Mutex
	adc      Adc
	channels []float64
}

// NewCvInput creates a CV input stage over the given ADC
func NewCvInput(adc Adc, channels int) *CvInput {
	return &CvInput{
		adc:      adc,
		channels: make([]float64, channels),
	}
}

// Init samples once
func (i *CvInput) Init() {
	i.Update()
}

// Update samples all channels
func (i *CvInput) Update() {
	i.mu.Lock()
	defer i.mu.Unlock()
	for ch := range i.channels {
		code := i.adc.Read(ch)
		i.channels[ch] = VoltsMin + float64(code)/65535.0*(VoltsMax-VoltsMin)
	}
}

// Channel returns the last sampled voltage
func (i *CvInput) Channel(channel int) float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	if channel < 0 || channel >= len(i.channels) {
		return 0
	}
	return i.channels[channel]
}

// MemoryDac is an in-memory DAC used by the simulator and tests
type MemoryDac struct {
	mu    sync.Mutex
	codes map[int]uint16
}

// NewMemoryDac creates an empty in-memory DAC
func NewMemoryDac() *MemoryDac {
	return &MemoryDac{codes: make(map[int]uint16)}
}

// Write stores the code
func (d *MemoryDac) Write(channel int, code uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.codes[channel] = code
}

// Code returns the last written code
func (d *MemoryDac) Code(channel int) uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.codes[channel]
}

// MemoryAdc is an in-memory ADC used by the simulator and tests
type MemoryAdc struct {
	mu    sync.Mutex
	codes map[int]uint16
}

// NewMemoryAdc creates an ADC reading mid-scale (0 V) everywhere
func NewMemoryAdc() *MemoryAdc {
	return &MemoryAdc{codes: make(map[int]uint16)}
}

// Read returns the stored code, mid-scale by default
func (a *MemoryAdc) Read(channel int) uint16 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if code, ok := a.codes[channel]; ok {
		return code
	}
	return 32767
}

// SetVolts stores a voltage as a raw code
func (a *MemoryAdc) SetVolts(channel int, volts float64) {
	code := (volts - VoltsMin) / (VoltsMax - VoltsMin) * 65535.0
	if code < 0 {
		code = 0
	}
	if code > 65535 {
		code = 65535
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.codes[channel] = uint16(code)
}
