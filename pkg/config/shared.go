package config

import (
	flag "github.com/spf13/pflag"
)

type Version int

type Monitoring struct {
	Port             int
	URLPrefix        string
	MetricEnabled    bool `fig:"metric_enabled"`
	ProfilingEnabled bool `fig:"profiling_enabled"`
}

func (c *Monitoring) IsEnabled() bool { return c.MetricEnabled || c.ProfilingEnabled }

type Server struct {
	Address string
	Https   bool
	Tls     struct {
		Address   string
		Domain    string
		HttpsKey  string
		HttpsCert string
	}
}

func (s *Server) WithFlags(fs *flag.FlagSet) {
	fs.StringVar(&s.Address, "address", s.Address, "HTTP server address (host:port)")
	fs.StringVar(&s.Tls.Address, "httpsAddress", s.Tls.Address, "HTTPS server address (host:port)")
	fs.StringVar(&s.Tls.HttpsKey, "httpsKey", s.Tls.HttpsKey, "HTTPS key")
	fs.StringVar(&s.Tls.HttpsCert, "httpsCert", s.Tls.HttpsCert, "HTTPS cert chain")
}

func (s *Server) GetAddr() string {
	if s.Https {
		return s.Tls.Address
	}
	return s.Address
}
