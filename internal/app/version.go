package app

// Version is reported by the CLI, the bridge health endpoint and the
// analyzer User-Agent.
var Version = "0.1.0"
