package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/config"
	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/model"
	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/pkg/logger"
	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/service"
)

type options struct {
	configPath string
	file       string
	save       bool
	tenant     string
	jsonOut    bool
}

func main() {
	opts := parseFlags()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		color.Red("✗ %v", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.configPath, "config", "config.yaml", "Path to config file")
	flag.StringVar(&opts.file, "file", "", "Declaration of division (PDF) to extract")
	flag.BoolVar(&opts.save, "save", false, "Store the extracted property in the database")
	flag.StringVar(&opts.tenant, "tenant", "", "Tenant the saved property belongs to")
	flag.BoolVar(&opts.jsonOut, "json", false, "Print the extracted data as JSON")
	flag.Parse()

	if opts.file == "" {
		flag.Usage()
		os.Exit(2)
	}
	if opts.save && opts.tenant == "" {
		log.Fatal("-tenant is required with -save")
	}
	return opts
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.OpenAI.APIKey == "" {
		return errors.New("openai.api_key (or OPENAI_API_KEY) is required")
	}

	// keep the spinner line readable
	logger.Init(&logger.Config{Level: "warn", Format: cfg.Log.Format, Output: os.Stderr})

	data, err := os.ReadFile(opts.file)
	if err != nil {
		return err
	}
	pages, err := service.NewPDFInspector(cfg.Server.MaxPDFPages).Inspect(data)
	if err != nil {
		return err
	}
	color.Blue("Extracting %s (%d pages)", filepath.Base(opts.file), pages)

	extractor := service.NewExtractor(service.NewOpenAIService(&cfg.OpenAI), service.ExtractorConfigFrom(&cfg.OpenAI))

	spinner := getSpinner("Waiting for the assistant...")
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				spinner.Add(1)
			}
		}
	}()

	start := time.Now()
	legal, err := extractor.Extract(ctx, service.SourceDocument{
		Data:        data,
		Filename:    filepath.Base(opts.file),
		ContentType: "application/pdf",
	})
	close(done)
	spinner.Finish()
	if err != nil {
		return err
	}
	color.Green("✓ Extracted in %s", time.Since(start).Round(time.Second))

	if opts.jsonOut {
		out, err := json.MarshalIndent(legal, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	} else {
		printSummary(legal)
	}

	if !opts.save {
		return nil
	}
	return save(ctx, cfg, opts.tenant, legal)
}

func printSummary(d *model.LegalData) {
	bold := color.New(color.Bold)
	bold.Printf("%s", d.Property.Name)
	fmt.Printf(" (%s, %s)\n", d.Property.PropertyNumber, d.Property.ManagementType)
	fmt.Printf("  Manager:    %s\n", d.Property.PropertyManager)
	fmt.Printf("  Accountant: %s\n", d.Property.Accountant)

	perBuilding := make(map[int]int)
	for _, u := range d.Units {
		perBuilding[u.BuildingIndex]++
	}
	for i, b := range d.Buildings {
		fmt.Printf("  [%d] %s, %s %s, %s %s: %d units\n", i, b.Name, b.Street, b.HouseNumber, b.ZipCode, b.City, perBuilding[i])
	}
	for idx, n := range perBuilding {
		if idx < 0 || idx >= len(d.Buildings) {
			color.Yellow("  ! %d units reference unknown building %d", n, idx)
		}
	}
}

func save(ctx context.Context, cfg *config.Config, tenant string, d *model.LegalData) error {
	in, err := d.ToPropertyInput()
	if err != nil {
		return err
	}

	db, err := service.OpenDatabase(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := service.NewSQLStore(db).CreateProperty(ctx, tenant, in)
	if err != nil {
		return err
	}
	color.Green("✓ Saved property %s with %d buildings and %d units", p.ID, len(p.Buildings), p.UnitCount())
	return nil
}
