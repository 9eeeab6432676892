// Package security builds TLS client configurations from file-based
// settings. Webhook handlers use it to trust a private CA and to present a
// client certificate to services that require mutual TLS.
//
//	cfg := security.TLSConfig{
//	    CAFile:   "/etc/intentflow/venue-ca.pem",
//	    CertFile: "/etc/intentflow/client.pem",
//	    KeyFile:  "/etc/intentflow/client-key.pem",
//	}
//	tlsCfg, err := cfg.Build()
package security
