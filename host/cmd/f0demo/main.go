// Command f0demo runs the STM32F0xx demo firmware on the simulated board,
// bridging its UART either to stdin/stdout or to a real serial device.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/shlex"
	"github.com/jessevdk/go-flags"

	"stm32f0demo/core"
	"stm32f0demo/host/config"
	"stm32f0demo/host/serial"
	"stm32f0demo/sim"
)

type options struct {
	Config    string   `short:"c" long:"config" description:"YAML configuration file"`
	Port      string   `short:"p" long:"port" description:"Bridge the UART to this serial device instead of stdio"`
	ListPorts bool     `long:"list-ports" description:"List available serial ports and exit"`
	Temp      *float32 `long:"temp" description:"Simulated die temperature in degC"`
	Send      string   `long:"send" description:"Bytes to inject into the UART at startup, shell-style tokens (e.g. 'T L50')"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			return
		}
		os.Exit(1)
	}

	if opts.ListPorts {
		ports, err := serial.List()
		if err != nil {
			log.Fatalf("list ports: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = loaded
	}
	if opts.Temp != nil {
		cfg.Sim.DieTempC = *opts.Temp
	}
	if opts.Port != "" {
		cfg.Serial.Port = opts.Port
	}

	var in io.Reader = os.Stdin
	var out io.Writer = os.Stdout
	if cfg.Serial.Port != "" {
		scfg := serial.DefaultConfig(cfg.Serial.Port)
		if cfg.Serial.Baud != 0 {
			scfg.Baud = cfg.Serial.Baud
		}
		port, err := serial.Open(scfg)
		if err != nil {
			log.Fatalf("serial: %v", err)
		}
		defer port.Close()
		in, out = port, port
	}

	simOpts := []sim.Option{
		sim.WithRealtime(),
		sim.WithDieTemp(cfg.Sim.DieTempC),
		sim.WithOutput(out),
	}
	if cfg.Sim.DriftC != 0 {
		simOpts = append(simOpts, sim.WithDrift(cfg.Sim.DriftC, cfg.Sim.DriftPeriod))
	}
	if cfg.Sim.Cal30 != 0 {
		simOpts = append(simOpts, sim.WithCal30(cfg.Sim.Cal30))
	}
	if cfg.Sim.Quantum != 0 {
		simOpts = append(simOpts, sim.WithQuantum(cfg.Sim.Quantum))
	}

	board := sim.New(simOpts...)
	app := core.NewApp(board.Peripherals(), board.Step)
	board.OnSysTick(app.Tb.Tick)

	var tokens []string
	if opts.Send != "" {
		var err error
		tokens, err = shlex.Split(opts.Send)
		if err != nil {
			log.Fatalf("--send: %v", err)
		}
	}

	// tarm/serial reports read timeouts as EOF; the serial pump retries.
	go pumpInput(board, in, cfg.Serial.Port != "")

	setupDone := make(chan struct{})
	go func() {
		app.Setup()
		close(setupDone)
		app.Run()
	}()

	// Setup drains residual receive bytes before printing the banner, so
	// scripted input goes onto the line only once it has returned.
	if len(tokens) > 0 {
		go func() {
			<-setupDone
			for _, tok := range tokens {
				board.Feed([]byte(tok))
			}
		}()
	}

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh
	fmt.Fprintln(os.Stderr, "\nexiting")
	// No graceful shutdown path exists in the firmware; stopping the process
	// is the external-reset equivalent.
}

// pumpInput forwards bytes from the external stream onto the simulated
// receive line.
func pumpInput(board *sim.Board, r io.Reader, retryEOF bool) {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			board.Feed(buf[:n])
		}
		if err != nil {
			if err == io.EOF && retryEOF {
				continue
			}
			if err != io.EOF {
				log.Printf("input: %v", err)
			}
			return
		}
	}
}
