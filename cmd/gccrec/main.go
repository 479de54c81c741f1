package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/theckman/yacspin"
	yml "gopkg.in/yaml.v2"

	"github.com/byohano/gccrec"
	"github.com/byohano/gccrec/internal/detect"
	"github.com/byohano/gccrec/internal/logging"
	"github.com/byohano/gccrec/internal/usbmon"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "dev"

	// ConfigFileName is what it sounds like
	ConfigFileName = "gccrec.yml"
	k              = koanf.New(".")
)

// Config holds the capture parameters read from the yaml file; every
// field can be overridden by a flag on the run command.
type Config struct {
	// Bus is the kernel bus number the adapter sits on; 0 means detect it
	Bus int `koanf:"bus" yaml:"bus"`

	// Device is the kernel device number on that bus; 0 means detect it
	Device int `koanf:"device" yaml:"device"`

	// Port is the 1-based controller socket to record
	Port int `koanf:"port" yaml:"port"`

	// Output is the CSV file the capture is written to
	Output string `koanf:"output" yaml:"output"`

	// Duration is the capture length in seconds
	Duration float64 `koanf:"duration" yaml:"duration"`

	// Wait is how many seconds to hold before the capture starts
	Wait float64 `koanf:"wait" yaml:"wait"`

	// Verbosity is 0 (warnings), 1 (progress), or 2 (debug)
	Verbosity int `koanf:"verbosity" yaml:"verbosity"`

	// LogFile receives the capture log
	LogFile string `koanf:"logfile" yaml:"logfile"`
}

func defaults() Config {
	return Config{
		Port:      gccrec.DefaultPlayerPort,
		Output:    "record.csv",
		Duration:  gccrec.DefaultDuration.Seconds(),
		Verbosity: 0,
		LogFile:   "gccrec.log",
	}
}

func setupconfig() {
	k.Load(structs.Provider(defaults(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `gccrec records GameCube controller inputs by watching the adapter's
USB traffic on the Linux usbmon interface and writing one CSV row per
controller frame.  Reading /dev/usbmon<bus> usually requires root.

Usage:
	gccrec <command> [flags]

Commands:
	run
	detect
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `gccrec is amenable to configuration via its .yml file.  For a primer on
YAML, see https://yaml.org/start.html

When no configuration is provided, the defaults are used.  The command
mkconf generates the configuration file with the default values; conf
prints the effective configuration.  Flags on the run command override
the file, e.g.:

	gccrec run -bus 3 -device 7 -port 1 -duration 10 -o record.csv

Leaving bus and device at 0 makes gccrec look for the adapter itself
(same as the detect command).  The usbmon kernel module must be loaded:

	sudo modprobe usbmon`
	fmt.Println(str)
}

func mkconf() {
	c := defaults()
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("gccrec version %v\n", Version)
}

func detectAdapter() {
	adapter, err := detect.FindAdapter()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("GameCube controller adapter found: bus %d, device %d\n", adapter.Bus, adapter.Device)
	fmt.Printf("monitor device: %s\n", usbmon.DevicePath(adapter.Bus))
}

func spinnerConfig(suffix string) yacspin.Config {
	return yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            suffix,
		SuffixAutoColon:   true,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	}
}

func run(args []string) {
	c := Config{}
	if err := k.Unmarshal("", &c); err != nil {
		log.Fatal(err)
	}

	fs := flag.NewFlagSet("run", flag.ExitOnError)
	bus := fs.Int("bus", c.Bus, "kernel bus number of the adapter (0 = detect)")
	device := fs.Int("device", c.Device, "kernel device number of the adapter (0 = detect)")
	port := fs.Int("port", c.Port, "controller port to record (1-4)")
	output := fs.String("o", c.Output, "output CSV file")
	duration := fs.Float64("duration", c.Duration, "capture length in seconds")
	wait := fs.Float64("wait", c.Wait, "seconds to wait before the capture starts")
	verbosity := fs.Int("v", c.Verbosity, "verbosity: 0 warnings, 1 progress, 2 debug")
	logPath := fs.String("logfile", c.LogFile, "capture log file")
	fs.Parse(args)

	if *port < 1 || *port > 4 {
		log.Fatalf("invalid port %d: must be between 1 and 4", *port)
	}
	if *duration <= 0 {
		log.Fatalf("invalid duration %v: must be strictly positive", *duration)
	}
	if *wait < 0 {
		log.Fatalf("invalid wait %v: must not be negative", *wait)
	}
	if *bus < 0 || *device < 0 {
		log.Fatalf("bus and device numbers must be positive (or 0 to detect)")
	}

	if *bus == 0 || *device == 0 {
		adapter, err := detect.FindAdapter()
		if err != nil {
			log.Fatalf("cannot locate the adapter: %v (plug it in, or pass -bus and -device)", err)
		}
		if *bus == 0 {
			*bus = adapter.Bus
		}
		if *device == 0 {
			*device = adapter.Device
		}
		fmt.Printf("Adapter detected on bus %d, device %d.\n", *bus, *device)
	}

	mon := usbmon.Device{Bus: *bus}
	if !mon.Exists() {
		log.Fatalf("%s does not exist; load the usbmon kernel module first (sudo modprobe usbmon)", mon.Path())
	}

	// Set up logging: everything goes to the log file at the configured
	// level; with -v the same lines are mirrored to stderr.
	logFile, err := os.Create(*logPath)
	if err != nil {
		log.Fatalf("cannot open log file: %v", err)
	}
	defer logFile.Close()
	var out io.Writer = logFile
	if *verbosity > 0 {
		out = io.MultiWriter(logFile, os.Stderr)
	}
	logger := logging.NewLogger(&logging.Config{
		Level:  logging.LevelFromVerbosity(*verbosity),
		Output: out,
	})
	logging.SetDefault(logger)

	if *wait > 0 {
		spinner, err := yacspin.New(spinnerConfig(" waiting"))
		if err != nil {
			log.Fatal(err)
		}
		spinner.Start()
		remaining := time.Duration(*wait * float64(time.Second))
		for remaining > 0 {
			spinner.Message(fmt.Sprintf("capture starts in %s", remaining.Round(time.Second)))
			step := time.Second
			if remaining < step {
				step = remaining
			}
			time.Sleep(step)
			remaining -= step
		}
		spinner.Stop()
	}

	fmt.Println("Starting capture.")
	params := gccrec.Params{
		BusNumber:    *bus,
		DeviceNumber: *device,
		PlayerPort:   *port,
		OutputPath:   *output,
		Duration:     time.Duration(*duration * float64(time.Second)),
	}
	metrics := gccrec.NewMetrics()

	spinner, err := yacspin.New(spinnerConfig(" capturing"))
	if err != nil {
		log.Fatal(err)
	}
	spinner.Start()
	spinner.Message(fmt.Sprintf("port %d on bus %d device %d for %gs", *port, *bus, *device, *duration))

	runErr := gccrec.Run(params, &gccrec.Options{
		Logger:   logger,
		Observer: metrics,
	})
	metrics.Stop()

	if runErr != nil {
		spinner.StopFail()
		logger.Errorf("capture failed: %v", runErr)
		fmt.Println("Due to an error, the application was interrupted. Please try again.")
		if gccrec.IsCode(runErr, gccrec.ErrCodePermissionDenied) {
			fmt.Printf("Reading %s requires elevated privileges; try again with sudo.\n", mon.Path())
		}
		os.Exit(1)
	}
	spinner.Stop()

	snap := metrics.Snapshot()
	fmt.Printf("Capture file ready! See result in '%s'.\n", *output)
	fmt.Printf("  %d bytes read, %d frames accepted, %d filtered, %d rows written in %s\n",
		snap.BytesRead, snap.PacketsAccepted, snap.PacketsFiltered, snap.RowsWritten,
		snap.Elapsed.Round(time.Millisecond))
	if snap.DisconnectedRows > 0 {
		fmt.Printf("  warning: %d rows were recorded while port %d read as disconnected\n",
			snap.DisconnectedRows, *port)
	}
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd := strings.ToLower(args[1])
	switch cmd {
	case "help":
		help()
	case "mkconf":
		mkconf()
	case "conf":
		printconf()
	case "detect":
		detectAdapter()
	case "run":
		run(args[2:])
	case "version":
		pversion()
	default:
		log.Fatal("unknown command")
	}
}
