// Command consoletail prints a board's debug console: the physical
// transport behind spec.md §6's log(fmt, args) sink, read over a UART
// through github.com/daedaluz/goserial.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/DelfiSpace/SDCard/logserial"
)

func main() {
	device := flag.String("port", "/dev/ttyUSB0", "serial device path")
	baud := flag.Uint("baud", 115200, "baud rate")
	flag.Parse()

	err := logserial.Tail(*device, uint32(*baud), func(line string) {
		fmt.Println(line)
	})
	if err != nil {
		log.Fatalf("tail %s: %v", *device, err)
	}
}
