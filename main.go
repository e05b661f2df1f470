package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"helixscreen/build_info"
	"helixscreen/commands"
	"helixscreen/config"
	"helixscreen/detect"
	"helixscreen/gcode"
	"helixscreen/metrics"
	"helixscreen/moonraker"
	"helixscreen/printer"
	"helixscreen/render"
	"helixscreen/runloop"
	"helixscreen/ui"
)

var (
	cfgPath string
	log     zerolog.Logger
)

func main() {
	root := &cobra.Command{
		Use:     "helixscreen",
		Short:   "Moonraker touchscreen core",
		Version: build_info.String(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg, _ := config.Load(cfgPath)
			level, err := zerolog.ParseLevel(cfg.LogLevel)
			if err != nil {
				level = zerolog.InfoLevel
			}
			log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
				Level(level).With().Timestamp().Logger()
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfigPath(), "configuration file")

	root.AddCommand(monitorCmd(), analyzeCmd(), detectCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "helixscreen.yaml"
	}
	return home + "/.config/helixscreen/helixscreen.yaml"
}

// resolveURL keeps the historical argument forms: host and port as two
// arguments, a bare host, or a full ws:// URL. With no arguments the
// configured URL wins.
func resolveURL(args []string, fallback string) string {
	switch len(args) {
	case 2:
		return "ws://" + args[0] + ":" + args[1] + "/websocket"
	case 1:
		if strings.Contains(args[0], "://") {
			return args[0]
		}
		return "ws://" + args[0] + "/websocket"
	default:
		return fallback
	}
}

// buildCore assembles the loop, state, transport and façade shared by the
// connected subcommands.
func buildCore(cfg *config.Config, url string) (*runloop.Loop, *printer.State, *moonraker.Client, *commands.Controller, error) {
	loop := runloop.New()
	limits := cfg.BuildLimits()
	state := printer.NewState(limits)
	state.SetTrackedLed(cfg.TrackedLed)

	client, err := moonraker.NewClient(url, loop, log)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	client.RegisterStatusUpdate(state.ApplyStatusUpdate)
	client.SetOnConnectFunc(func() {
		state.SetConnection(printer.Connected)
		client.DiscoverPrinter(limits, func(inv *moonraker.Inventory) {
			result := detect.DefaultDatabase().Detect(detectorSnapshot(inv), log)
			if result.Detected() {
				log.Info().Str("printer", result.Name).Int("confidence", result.Confidence).Msg("machine classified")
			}
		}, func(err *moonraker.Error) {
			log.Warn().Err(err).Msg("discovery failed")
		})
	})
	client.SetOnDisconnectFunc(func() {
		state.SetConnection(printer.Disconnected)
	})
	// Klippy coming back after a firmware restart invalidates the object
	// list; rerun discovery on the same socket.
	client.SetOnKlippyReadyFunc(func() {
		log.Info().Msg("klippy ready, rediscovering")
		client.DiscoverPrinter(limits, nil, nil)
	})

	ctrl := commands.NewController(client, limits, log)
	return loop, state, client, ctrl, nil
}

func detectorSnapshot(inv *moonraker.Inventory) detect.Snapshot {
	heaters, sensors, fans, leds, hostname, objects := inv.DetectorSnapshot()
	return detect.Snapshot{
		Heaters:    heaters,
		Sensors:    sensors,
		Fans:       fans,
		Leds:       leds,
		Hostname:   hostname,
		Objects:    objects,
		Kinematics: inv.Kinematics,
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Warn().Err(err).Str("addr", addr).Msg("debug listener stopped")
		}
	}()
}

func monitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor [host [port]]",
		Short: "Live status console connected to a Moonraker server",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			url := resolveURL(args, cfg.URL)

			loop, state, client, ctrl, err := buildCore(cfg, url)
			if err != nil {
				return err
			}
			if cfg.DebugAddr != "" {
				serveMetrics(cfg.DebugAddr)
			}

			go loop.Run()
			defer loop.Stop()
			defer client.Close()

			loop.Post(func() { state.SetConnection(printer.Connecting) })
			if err := client.Connect(); err != nil {
				log.Warn().Err(err).Msg("initial connect failed, retrying in background")
			}

			program := ui.NewMonitor(ui.Deps{
				State:    state,
				Commands: ctrl,
				Client:   client,
				Loop:     loop,
				Version:  build_info.String(),
			})
			_, err = program.Run()
			return err
		},
	}
}

func analyzeCmd() *cobra.Command {
	var epsilon float64
	cmd := &cobra.Command{
		Use:   "analyze <file.gcode>",
		Short: "Parse a sliced file and summarize its toolpath",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			parser := gcode.NewParser(args[0])
			parser.LayerEpsilon = float32(epsilon)
			if err := parser.ParseAll(f); err != nil {
				return err
			}
			file := parser.Finalize()

			headline := color.New(color.FgGreen, color.Bold)
			headline.Printf("%s: %d layers, %d segments (%d extrusion, %d travel)\n",
				file.Filename, len(file.Layers), file.TotalSegments, file.Extrusions, file.Travels)
			if file.BBox.Valid() {
				fmt.Printf("bounds: (%.1f, %.1f, %.1f) to (%.1f, %.1f, %.1f)\n",
					file.BBox.Min.X, file.BBox.Min.Y, file.BBox.Min.Z,
					file.BBox.Max.X, file.BBox.Max.Y, file.BBox.Max.Z)
			}
			for _, name := range file.ObjectNames {
				fmt.Printf("object: %s\n", name)
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("Layer", "Z", "Segments", "Extrusions", "Travels")
			for i, layer := range file.Layers {
				table.Append([]string{
					fmt.Sprint(i),
					fmt.Sprintf("%.2f", layer.ZHeight),
					fmt.Sprint(len(layer.Segments)),
					fmt.Sprint(layer.Extrusions),
					fmt.Sprint(layer.Travels),
				})
			}
			if err := table.Render(); err != nil {
				return err
			}

			// A throwaway fitted render gives a quick visibility check.
			cam := render.NewCamera(800, 480)
			cam.FitToBounds(file.BBox)
			r := render.NewRenderer(cam)
			r.Render(&file, &render.Recorder{})
			fmt.Printf("preview: %d segments visible, %d culled\n", r.Rendered, r.Culled)
			return nil
		},
	}
	cmd.Flags().Float64Var(&epsilon, "layer-epsilon", 0, "layer change tolerance in mm")
	return cmd
}

func detectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect [host [port]]",
		Short: "Connect, discover the hardware and classify the printer",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			url := resolveURL(args, cfg.URL)

			loop := runloop.New()
			limits := cfg.BuildLimits()
			client, err := moonraker.NewClient(url, loop, log)
			if err != nil {
				return err
			}
			go loop.Run()
			defer loop.Stop()
			defer client.Close()

			done := make(chan detect.Result, 1)
			fail := make(chan error, 1)
			client.SetOnConnectFunc(func() {
				client.DiscoverPrinter(limits, func(inv *moonraker.Inventory) {
					done <- detect.DefaultDatabase().Detect(detectorSnapshot(inv), log)
				}, func(err *moonraker.Error) {
					fail <- err
				})
			})
			if err := client.Connect(); err != nil {
				return err
			}

			select {
			case result := <-done:
				if !result.Detected() {
					fmt.Println("no match")
					return nil
				}
				headline := color.New(color.FgCyan, color.Bold)
				headline.Printf("%s (%d%% confidence)\n", result.Name, result.Confidence)
				fmt.Printf("matched: %s\n", result.Reason)
				if result.Image != "" {
					fmt.Printf("image: %s\n", result.Image)
				}
				return nil
			case err := <-fail:
				return err
			case <-time.After(30 * time.Second):
				return fmt.Errorf("discovery timed out")
			}
		},
	}
}
