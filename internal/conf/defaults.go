// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "pantrysync")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "pantrysync.log")

	viper.SetDefault("catalog.sqlite.enabled", true)
	viper.SetDefault("catalog.sqlite.path", "catalog.db")

	viper.SetDefault("catalog.mysql.enabled", false)
	viper.SetDefault("catalog.mysql.username", "pantrysync")
	viper.SetDefault("catalog.mysql.password", "secret")
	viper.SetDefault("catalog.mysql.database", "pantrysync")
	viper.SetDefault("catalog.mysql.host", "localhost")
	viper.SetDefault("catalog.mysql.port", "3306")

	viper.SetDefault("catalog.fuzzycutoff", 0.8)

	viper.SetDefault("pricefeed.baseurl", "https://rewe.nicoo.org/")
	viper.SetDefault("pricefeed.region", "schleswig-holstein")
	viper.SetDefault("pricefeed.startdate", "2025-06-15")
	viper.SetDefault("pricefeed.maxmissingdays", 10)
	viper.SetDefault("pricefeed.cachedir", "exports/")

	viper.SetDefault("receipt.url", "https://shop.rewe.de/api/receipts/")
	viper.SetDefault("receipt.token", "")
	viper.SetDefault("receipt.history", 10)

	viper.SetDefault("grocy.url", "https://localhost:443")
	viper.SetDefault("grocy.apikey", "")
	viper.SetDefault("grocy.locationid", 1)
	viper.SetDefault("grocy.shoppinglocationid", 1)
	viper.SetDefault("grocy.quantityunitid", 2)
	viper.SetDefault("grocy.defaultbestbeforedays", 30)
	viper.SetDefault("grocy.minstockamount", 0)

	viper.SetDefault("foodfacts.enabled", true)
	viper.SetDefault("foodfacts.baseurl", "https://world.openfoodfacts.org")
	viper.SetDefault("foodfacts.cachettl", 24*time.Hour)
}
