// Package config provides application configuration management from
// environment variables.
//
// All settings have defaults; the daemon only requires a data source. The
// variables use the IBMETRICS_ prefix:
//
//	IBMETRICS_HOST="0.0.0.0"
//	IBMETRICS_PORT="8080"
//	IBMETRICS_DUMP_PATH="/var/lib/ibmetrics/builds.dump"
//	IBMETRICS_POSTGRES_URL="postgres://localhost/composer"
//	IBMETRICS_S3_BUCKET=""
//	IBMETRICS_CACHE_DIR="$XDG_CACHE_HOME/ibmetrics"
//	IBMETRICS_FOOTPRINT_MAP=""            # YAML file; empty means built-in table
//	IBMETRICS_RELOAD_SCHEDULE="0 * * * *" # cron expression
//	IBMETRICS_WATCH="true"                # fsnotify reload on dump changes
//	IBMETRICS_REDIS_ADDR=""               # empty disables the result cache
//	IBMETRICS_LOG_LEVEL="info"
package config
