package utils

// Version of the module, set for releases.
const Version = "0.1.0"
