package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-q string   gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-l int      balance lock timeout, seconds
//	-f string   price list JSON file
//	-r string   Redis address for the entitlement cache
//	-x int      entitlement cache TTL, minutes
//	-v string   log level
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// Only the flags listed above are parsed; everything else in os.Args is
// ignored.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-q", "-d", "-s", "-l", "-f", "-r", "-x", "-v", "-u", "-p", "-b", "-g", "-e",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run HTTP server")
	fs.StringVar(&config.EndpointAddrGRPC, "q", config.EndpointAddrGRPC, "address and port to run gRPC server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	lockTimeout := fs.Int("l", int(config.LockTimeout.Seconds()), "balance lock timeout (in seconds)")

	fs.StringVar(&config.PriceListFile, "f", config.PriceListFile, "price list file")
	fs.StringVar(&config.CacheAddr, "r", config.CacheAddr, "redis address for entitlement cache")

	cacheTTL := fs.Int("x", int(config.CacheTTL.Minutes()), "entitlement cache ttl (in minutes)")

	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.LockTimeout = time.Duration(*lockTimeout) * time.Second
	config.CacheTTL = time.Duration(*cacheTTL) * time.Minute
}
