// Package audio реализует захват с микрофона и чтение/запись WAV.
// Движок идентификации получает от этого слоя готовые буферы
// float32 моно 16 кГц и сам с устройствами не работает.
package audio

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// SampleRate частота дискретизации всего конвейера (Whisper-совместимая)
const SampleRate = 16000

// Device описание устройства ввода
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Capture захват аудио с микрофона через miniaudio
type Capture struct {
	ctx      *malgo.AllocatedContext
	deviceID *malgo.DeviceID
	mu       sync.Mutex
}

// NewCapture инициализирует аудио-контекст
func NewCapture() (*Capture, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: init context: %w", err)
	}
	return &Capture{ctx: ctx}, nil
}

// ListInputDevices возвращает доступные устройства ввода
func (c *Capture) ListInputDevices() ([]Device, error) {
	infos, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("audio: enumerate capture devices: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, Device{
			ID:   deviceIDToString(info.ID),
			Name: info.Name(),
		})
	}
	return devices, nil
}

// SetDevice выбирает устройство ввода по ID (пустая строка - по умолчанию)
func (c *Capture) SetDevice(deviceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deviceID == "" || deviceID == "default" {
		c.deviceID = nil
		return nil
	}

	id, err := stringToDeviceID(deviceID)
	if err != nil {
		return err
	}
	c.deviceID = id
	return nil
}

// Record блокирующе записывает duration секунд аудио с выбранного
// устройства. Используется и для калибровки (~10 с), и для рантайм-чанков
// (2-3 с).
func (c *Capture) Record(duration float64) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wanted := int(duration * SampleRate)
	samples := make([]float32, 0, wanted)
	done := make(chan struct{})
	var once sync.Once

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = SampleRate
	deviceConfig.Alsa.NoMMap = 1
	if c.deviceID != nil {
		deviceConfig.Capture.DeviceID = c.deviceID.Pointer()
	}

	onRecvFrames := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		if len(samples) >= wanted {
			once.Do(func() { close(done) })
			return
		}

		count := int(framecount)
		if len(pInputSamples) != count*4 {
			return
		}
		for i := 0; i < count && len(samples) < wanted; i++ {
			bits := uint32(pInputSamples[i*4]) |
				uint32(pInputSamples[i*4+1])<<8 |
				uint32(pInputSamples[i*4+2])<<16 |
				uint32(pInputSamples[i*4+3])<<24
			samples = append(samples, math.Float32frombits(bits))
		}
		if len(samples) >= wanted {
			once.Do(func() { close(done) })
		}
	}

	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onRecvFrames,
	})
	if err != nil {
		return nil, fmt.Errorf("audio: init capture device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return nil, fmt.Errorf("audio: start capture: %w", err)
	}

	// Страховочный таймаут на случай молчащего устройства
	select {
	case <-done:
	case <-time.After(time.Duration(duration*float64(time.Second)) + 2*time.Second):
	}

	device.Stop()
	return samples, nil
}

// Level возвращает текущий уровень входа (RMS за duration секунд,
// обрезанный в [0, 1]) для индикатора в интерфейсе
func (c *Capture) Level(duration float64) float64 {
	samples, err := c.Record(duration)
	if err != nil || len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(samples)))

	// Типичный RMS речи ~0.05-0.2, масштабируем в видимый диапазон
	level := rms * 5
	if level > 1 {
		level = 1
	}
	return level
}

// Close освобождает аудио-контекст
func (c *Capture) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx != nil {
		_ = c.ctx.Uninit()
		c.ctx.Free()
		c.ctx = nil
	}
}

func deviceIDToString(id malgo.DeviceID) string {
	var b strings.Builder
	for _, ch := range id[:32] {
		if ch == 0 {
			break
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func stringToDeviceID(s string) (*malgo.DeviceID, error) {
	if len(s) > 32 {
		return nil, fmt.Errorf("audio: device ID too long")
	}
	var id malgo.DeviceID
	copy(id[:], s)
	return &id, nil
}
