package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/crim/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-s string   store backend: memory, postgres or s3
//	-d string   PostgreSQL DSN
//	-k string   local key cache file (SQLite); empty disables it
//	-t int      session lifetime, minutes
//	-m float    minimum password entropy, bits
//	-r int      RSA modulus size for new accounts
//	-f bool     require friendship to open a conversation (-f false and -f=false both work)
//	-l string   log level
//	-b string   S3 bucket
//	-g string   S3 region
//	-e string   S3 base endpoint
//	-u string   S3 access key
//	-p string   S3 secret key
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args,
		[]string{"-s", "-d", "-k", "-t", "-m", "-r", "-f", "-l", "-b", "-g", "-e", "-u", "-p"},
		"-f")

	fs := flag.NewFlagSet("crim", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.StoreBackend, "s", config.StoreBackend, "store backend")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.KeyCachePath, "k", config.KeyCachePath, "key cache file")
	sessionTTL := fs.Int("t", int(config.SessionTTL.Minutes()), "session lifetime (in minutes)")
	fs.Float64Var(&config.MinPasswordEntropy, "m", config.MinPasswordEntropy, "minimum password entropy (bits)")
	fs.IntVar(&config.RSABits, "r", config.RSABits, "RSA key size")
	fs.BoolVar(&config.RequireFriends, "f", config.RequireFriends, "require friendship for new conversations")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.SessionTTL = time.Duration(*sessionTTL) * time.Minute
	return nil
}
