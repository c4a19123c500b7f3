// Command sdbench exercises an SD card over a Linux spidev + GPIO
// chip-select pair, timing a handful of single-block reads and writes. It
// is the board-wiring component spec.md §6 treats as an external
// collaborator (bus peripheral + chip-select), made concrete (spec.md §4,
// domain stack).
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/DelfiSpace/SDCard/blockdev"
	"github.com/DelfiSpace/SDCard/busspidev"
	"github.com/DelfiSpace/SDCard/sd"
	"github.com/daedaluz/goserial/spi"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

func main() {
	device := flag.String("spidev", "/dev/spidev0.0", "spidev device path")
	csPin := flag.String("cs", "GPIO8", "chip-select GPIO pin name")
	speed := flag.Uint("speed-hz", 1_000_000, "SPI clock speed in Hz")
	blocks := flag.Uint("blocks", 16, "number of 512-byte blocks to benchmark")
	flag.Parse()

	if _, err := host.Init(); err != nil {
		log.Fatalf("host.Init: %v", err)
	}

	dev, err := spi.Open(*device, &spi.Config{
		Mode:  0,
		Bits:  8,
		Speed: uint32(*speed),
	})
	if err != nil {
		log.Fatalf("open %s: %v", *device, err)
	}
	defer dev.Close()

	pin := gpioreg.ByName(*csPin)
	if pin == nil {
		log.Fatalf("no such GPIO pin: %s", *csPin)
	}
	pin.Out(gpio.High)

	bus := busspidev.New(dev)
	cs := busspidev.ChipSelect(pin)
	card := sd.NewCard(bus, cs)

	if err := card.Init(); err != nil {
		log.Fatalf("card.Init: %v", err)
	}
	defer card.Deinit()

	fmt.Printf("card type: %s, size: %d bytes, erase group: %d bytes\n",
		card.Type(), card.Size(), card.EraseGroupSize())

	bd := blockdev.New(card)
	buf := make([]byte, 512)

	writeStart := time.Now()
	for i := uint(0); i < *blocks; i++ {
		if err := bd.Program(buf, uint64(i)*512, 512); err != nil {
			log.Fatalf("program block %d: %v", i, err)
		}
	}
	writeElapsed := time.Since(writeStart)

	readStart := time.Now()
	for i := uint(0); i < *blocks; i++ {
		if err := bd.Read(buf, uint64(i)*512, 512); err != nil {
			log.Fatalf("read block %d: %v", i, err)
		}
	}
	readElapsed := time.Since(readStart)

	fmt.Printf("%d blocks: write %v (%.1f KB/s), read %v (%.1f KB/s)\n",
		*blocks, writeElapsed, kbPerSec(*blocks, writeElapsed),
		readElapsed, kbPerSec(*blocks, readElapsed))
}

func kbPerSec(blocks uint, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	bytes := float64(blocks) * 512
	return bytes / 1024 / d.Seconds()
}
