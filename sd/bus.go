package sd

import "tinygo.org/x/drivers"

// Bus is the full-duplex byte-exchange primitive of spec.md §4.A. It is
// satisfied directly by tinygo.org/x/drivers.SPI, which is what the card
// driver is written against so it keeps working unmodified on every board
// tinygo.org/x/drivers already supports.
type Bus = drivers.SPI

// ChipSelect asserts (true) or deasserts (false) the card's dedicated
// chip-select line. It is never driven by the SPI peripheral itself
// (spec.md §3, "Chip-select is a separate GPIO").
type ChipSelect func(assert bool)
