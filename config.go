package granary

import (
	"github.com/spf13/viper"
)

func loadConfig() {
	viper.SetConfigName("granaryrc")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.granary")

	setupDefaults()

	viper.ReadInConfig()

	viper.SetEnvPrefix("granary")
	viper.AutomaticEnv()
}

func setupDefaults() {
	defaultSettings := map[string]interface{}{
		"cleanup":          true,
		"verbose":          false,
		"split_size":       100 * 1024 * 1024, // Default input split size is 100Mb
		"map_bin_size":     512 * 1024 * 1024, // Default map bin size is 512Mb
		"reduce_bin_size":  512 * 1024 * 1024, // Default reduce bin size is 512Mb
		"max_concurrency":  500,               // Maximum number of concurrent tasks
		"working_location": ".",
	}
	for key, value := range defaultSettings {
		viper.SetDefault(key, value)
	}

	aliases := map[string]string{
		"verbose":          "v",
		"working_location": "o",
	}
	for key, alias := range aliases {
		viper.RegisterAlias(alias, key)
	}
}
