package common

// AccessTokenHeaderName is the gRPC metadata key carrying the admin token.
const AccessTokenHeaderName = "access_token"

// TimeLayout is the wire format of announcement timestamps.
const TimeLayout = "2006-01-02 15:04:05"
