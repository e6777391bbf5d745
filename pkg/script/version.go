package script

// Version is reported by #version and the websrv status endpoint.
const Version = "0.3.1"
