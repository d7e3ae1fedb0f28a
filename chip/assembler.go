package chip

// assembler shifts sampled bits into bytes, MSB first. The phase counter is
// reset on chip-select assertion, which is what makes the first assembled
// byte of a transaction unambiguously the command byte. A partial byte left
// over when chip select deasserts is never forwarded; reset discards it.
type assembler struct {
	shift     byte
	bitCount  int
	byteIndex int
}

func (a *assembler) reset() {
	a.shift = 0
	a.bitCount = 0
	a.byteIndex = 0
}

// shiftIn consumes one sampled bit. When the 8th bit of a byte arrives it
// returns the byte, whether it is the command byte, and ok=true.
func (a *assembler) shiftIn(bit bool) (b byte, isCommand, ok bool) {
	a.shift <<= 1
	if bit {
		a.shift |= 1
	}

	a.bitCount++
	if a.bitCount < 8 {
		return 0, false, false
	}

	b = a.shift
	isCommand = a.byteIndex == 0
	a.byteIndex++
	a.bitCount = 0

	return b, isCommand, true
}
