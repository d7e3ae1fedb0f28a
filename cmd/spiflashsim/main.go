// Command spiflashsim runs the emulated SPI NOR flash device with a
// scripted host and prints what came back over the bus.
package main

func main() {
	Execute()
}
