package config

// Version is the version of the walletd binary, set at build time with
// -ldflags.
var Version = "dev"
