package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/emusim/spiflashsim/chip"
	"github.com/emusim/spiflashsim/host"
	"github.com/emusim/spiflashsim/memsys"
	"github.com/emusim/spiflashsim/monitoring"
	"github.com/emusim/spiflashsim/recording"
	"github.com/emusim/spiflashsim/sim"
	"github.com/emusim/spiflashsim/system"
)

var runFlags = struct {
	capacityMB      uint64
	chipFreqMHz     uint64
	spiFreqMHz      uint64
	latency         int
	refreshInterval uint64
	refreshCycles   int
	image           string
	addr            uint32
	numBytes        int
	count           int
	monitor         bool
	monitorPort     int
	useBrowser      bool
	dbPath          string
}{}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scripted read against the emulated chip",
	RunE: func(_ *cobra.Command, _ []string) error {
		return run()
	},
}

func init() {
	f := runCmd.Flags()
	f.Uint64Var(&runFlags.capacityMB, "capacity-mb", 16,
		"backing store size in MiB")
	f.Uint64Var(&runFlags.chipFreqMHz, "chip-freq-mhz", 100,
		"chip and arbiter clock in MHz")
	f.Uint64Var(&runFlags.spiFreqMHz, "spi-freq-mhz", 1,
		"SPI bit rate in MHz")
	f.IntVar(&runFlags.latency, "latency", 4,
		"arbiter access latency in cycles")
	f.Uint64Var(&runFlags.refreshInterval, "refresh-interval", 780,
		"refresh period in chip cycles")
	f.IntVar(&runFlags.refreshCycles, "refresh-cycles", 2,
		"duration of one refresh in chip cycles")
	f.StringVar(&runFlags.image, "image", "",
		"file preloaded into the backing store at address 0")
	f.Uint32Var(&runFlags.addr, "addr", 0,
		"start address of the read")
	f.IntVar(&runFlags.numBytes, "bytes", 16,
		"bytes per read transaction")
	f.IntVar(&runFlags.count, "count", 1,
		"number of back-to-back read transactions")
	f.BoolVar(&runFlags.monitor, "monitor", false,
		"start the monitoring server")
	f.IntVar(&runFlags.monitorPort, "monitor-port", 0,
		"port for the monitoring server, 0 picks a random port")
	f.BoolVar(&runFlags.useBrowser, "browser", false,
		"open the monitoring page in the default browser")
	f.StringVar(&runFlags.dbPath, "db", "",
		"record transactions into this SQLite database")

	rootCmd.AddCommand(runCmd)
}

func run() error {
	// A .env file can supply defaults, e.g. SPIFLASHSIM_DB.
	_ = godotenv.Load()

	if runFlags.dbPath == "" {
		runFlags.dbPath = os.Getenv("SPIFLASHSIM_DB")
	}

	b := system.MakeBuilder().
		WithChipFreq(sim.Freq(runFlags.chipFreqMHz) * sim.MHz).
		WithSPIFreq(sim.Freq(runFlags.spiFreqMHz) * sim.MHz).
		WithCapacity(runFlags.capacityMB * memsys.MB).
		WithLatency(runFlags.latency).
		WithRefreshInterval(runFlags.refreshInterval).
		WithRefreshCycles(runFlags.refreshCycles)

	if runFlags.image != "" {
		image, err := os.ReadFile(runFlags.image)
		if err != nil {
			return err
		}
		b = b.WithImage(image)
	}

	for i := 0; i < runFlags.count; i++ {
		b = b.WithTransfers(host.Transfer{
			Opcode:    chip.OpcodeRead,
			Address:   runFlags.addr + uint32(i*runFlags.numBytes),
			ReadBytes: runFlags.numBytes,
		})
	}

	p := b.Build("Platform")

	if runFlags.dbPath != "" {
		rec := recording.New(runFlags.dbPath)
		p.Chip.AcceptHook(
			recording.NewTransactionRecorder(rec, "transactions"))
	}

	if runFlags.monitor {
		m := monitoring.NewMonitor()
		if runFlags.monitorPort > 0 {
			m = m.WithPortNumber(runFlags.monitorPort)
		}
		if runFlags.useBrowser {
			m = m.WithBrowser()
		}

		m.RegisterEngine(p.Engine)
		m.RegisterComponent(p.Chip)
		m.RegisterComponent(p.Arbiter)
		m.RegisterComponent(p.Maint)
		m.RegisterComponent(p.Host)
		m.RegisterCounters("chip", func() any { return p.Chip.Counters() })
		m.RegisterCounters("arbiter", func() any { return p.Arbiter.Counters() })
		m.RegisterCounters("maint", func() any { return p.Maint.Counters() })
		m.StartServer()
	}

	if err := p.Run(); err != nil {
		return err
	}

	// Pull the final counters record over the maintenance link as well.
	p.Maint.QueueCounters()
	if err := p.Engine.Run(); err != nil {
		return err
	}

	for i, data := range p.Host.Results() {
		fmt.Printf("read %d @ 0x%06X: % X\n",
			i, runFlags.addr+uint32(i*runFlags.numBytes), data)
	}

	cc := p.Chip.Counters()
	ac := p.Arbiter.Counters()
	fmt.Printf("transactions: %d, reads: %d, placeholder bytes: %d\n",
		cc.Transactions, cc.ReadTransactions, cc.PlaceholderBytes)
	fmt.Printf("flash reads: %d, refreshes: %d, inhibited: %d\n",
		ac.FlashReads, ac.Refreshes, ac.InhibitedRefreshes)
	fmt.Printf("log overruns: %d, maint bytes: % X\n",
		p.Logger.Overruns(), p.Maint.Sent())

	atexit.Exit(0)

	return nil
}
