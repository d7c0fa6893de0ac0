package version

// Version is the current calldex release version
const Version = "0.1.0"
