// glacierwatch-admin seeds and maintains the registry: schema
// migration, project registration and glacier polygon loading.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/glacierwatch/glacierwatch/internal/catalog"
	"github.com/glacierwatch/glacierwatch/internal/database"
	"github.com/glacierwatch/glacierwatch/internal/log"
	"github.com/glacierwatch/glacierwatch/pkg/config"
)

func main() {
	var (
		cfgFile     = flag.String("config", "config.yaml", "Path to YAML configuration file")
		command     = flag.String("command", "", "Command: migrate, register-project, load-glaciers")
		projectID   = flag.String("project", "", "Project identifier")
		name        = flag.String("name", "", "Human readable project name (register-project)")
		description = flag.String("description", "", "Project description (register-project)")
		aoiFile     = flag.String("aoi", "", "GeoJSON geometry file with the area of interest (register-project)")
		glacierFile = flag.String("glaciers", "", "GeoJSON FeatureCollection with glacier polygons (load-glaciers)")
		debug       = flag.Bool("debug", false, "Turn on debugging output")
		helpFlag    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *helpFlag || *command == "" {
		showHelp()
		if *command == "" && !*helpFlag {
			os.Exit(1)
		}
		return
	}

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	filename, _ := filepath.Abs(*cfgFile)
	cfg, err := config.NewYAMLProvider(filename).LoadConfig()
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	client, err := database.NewClient(cfg.Database.ConnectionString, log.GetSugaredLogger())
	if err != nil {
		log.Errorf("Failed to connect to database: %v", err)
		os.Exit(1)
	}
	defer client.Close()

	switch *command {
	case "migrate":
		err = migrate(client.DB)
	case "register-project":
		err = registerProject(client.DB, *projectID, *name, *description, *aoiFile)
	case "load-glaciers":
		err = loadGlaciers(client.DB, *projectID, *glacierFile)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", *command)
		showHelp()
		os.Exit(1)
	}

	if err != nil {
		log.Errorf("%s failed: %v", *command, err)
		os.Exit(1)
	}
}

func migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&database.Project{},
		&database.Scene{},
		&database.Glacier{},
		&database.ProcessingResult{},
		&database.SceneAnalysis{},
	)
	if err != nil {
		return err
	}
	log.Info("schema migration complete")
	return nil
}

func registerProject(db *gorm.DB, projectID, name, description, aoiFile string) error {
	if projectID == "" {
		return fmt.Errorf("-project is required")
	}
	if name == "" {
		name = projectID
	}

	project := database.Project{
		ProjectID:   projectID,
		Name:        name,
		Description: description,
	}

	if aoiFile != "" {
		aoi, err := os.ReadFile(aoiFile)
		if err != nil {
			return fmt.Errorf("reading AOI file: %w", err)
		}
		project.AreaOfInterest = string(aoi)
	}

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "area_of_interest"}),
	}).Create(&project).Error
	if err != nil {
		return err
	}

	log.Infof("registered project %s", projectID)
	return nil
}

func loadGlaciers(db *gorm.DB, projectID, glacierFile string) error {
	if projectID == "" {
		return fmt.Errorf("-project is required")
	}
	if glacierFile == "" {
		return fmt.Errorf("-glaciers is required")
	}

	data, err := os.ReadFile(glacierFile)
	if err != nil {
		return fmt.Errorf("reading glacier file: %w", err)
	}

	glaciers, err := catalog.ParseGlacierCollection(data, projectID)
	if err != nil {
		return err
	}
	if len(glaciers) == 0 {
		return fmt.Errorf("no features in %s", glacierFile)
	}

	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "glacier_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"project_id", "name", "geometry"}),
	}).Create(&glaciers).Error
	if err != nil {
		return err
	}

	log.Infof("loaded %d glaciers into project %s", len(glaciers), projectID)
	return nil
}

func showHelp() {
	fmt.Println("glacierwatch-admin - registry maintenance for glacierwatch")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s -config <config.yaml> -command <command> [options]\n", os.Args[0])
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  migrate           Create or update the database schema")
	fmt.Println("  register-project  Create or update a project (-project, -name, -description, -aoi)")
	fmt.Println("  load-glaciers     Load glacier polygons from GeoJSON (-project, -glaciers)")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
}
