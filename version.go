package chatflow

// Version is the release version. It is overridden at build time with
// -ldflags "-X github.com/aretw0/chatflow.Version=...".
var Version = "0.1.0-dev"
