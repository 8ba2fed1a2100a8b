package config_test

import (
	"fmt"

	"github.com/ajitpratap0/meddevices/pkg/config"
)

// ExampleDefault shows the values a run starts from.
func ExampleDefault() {
	cfg := config.Default()

	fmt.Printf("Data dir: %s\n", cfg.DataDir)
	fmt.Printf("Mongo: %s:%d/%s\n", cfg.Mongo.Host, cfg.Mongo.Port, cfg.Mongo.Database)
	fmt.Printf("Batch size: %d\n", cfg.Mongo.BatchSize)
	fmt.Printf("Archive timeout: %s\n", cfg.HTTP.ArchiveTimeout)

	// Output:
	// Data dir: data
	// Mongo: localhost:27017/medical_devices
	// Batch size: 1000
	// Archive timeout: 0s
}

// ExampleValidateDatabaseName shows the database naming rules.
func ExampleValidateDatabaseName() {
	for _, name := range []string{"medical_devices", "", "$admin", "fda.devices"} {
		if err := config.ValidateDatabaseName(name); err != nil {
			fmt.Println(err)
			continue
		}
		fmt.Printf("%s ok\n", name)
	}

	// Output:
	// medical_devices ok
	// validation: database name cannot be empty
	// validation: database name cannot start with "$"
	// validation: database name cannot contain "."
}

// ExampleMongoConfig_Validate shows port normalization.
func ExampleMongoConfig_Validate() {
	cfg := config.Default()
	cfg.Mongo.Port = -27018

	if err := cfg.Mongo.Validate(); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(cfg.Mongo.Port)

	cfg.Mongo.Port = 70000
	fmt.Println(cfg.Mongo.Validate())

	// Output:
	// 27018
	// validation: port must be between 1 and 65535
}
