package config

import (
	"errors"
	"flag"
	"net"
	"strconv"
	"strings"
	"time"
)

// NetAddress holds structured network address data for host and port.
// It implements the flag.Value interface.
type NetAddress struct {
	Host string
	Port int
}

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-a server address in format [host]:[port]
//	-c/-config json file path with configs
//	-webhook-secret webhook HMAC verification key
//	-push-url websocket push channel URL
//	-polling-url pull-mode base URL
//	-token client bearer token
//	-polling-interval pull fetch spacing (e.g., "30s")
//	-max-reconnect-attempts push reconnect budget
//	-request-timeout request timeout (e.g., "30s", "1m")
func ParseFlags() *StructuredConfig {
	var serverAddress NetAddress
	var jsonConfigPath string
	var webhookSecret string
	var pushURL string
	var pollingURL string
	var token string
	var pollingInterval time.Duration
	var maxReconnectAttempts int
	var requestTimeout time.Duration

	flag.Var(&serverAddress, "a", "Net address host:port")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	flag.StringVar(&webhookSecret, "webhook-secret", "", "Webhook HMAC verification key")
	flag.StringVar(&pushURL, "push-url", "", "Websocket push channel URL")
	flag.StringVar(&pollingURL, "polling-url", "", "Pull-mode base URL")
	flag.StringVar(&token, "token", "", "Client bearer token")
	flag.DurationVar(&pollingInterval, "polling-interval", 0, "Pull fetch spacing (e.g., 30s)")
	flag.IntVar(&maxReconnectAttempts, "max-reconnect-attempts", 0, "Push reconnect budget")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 30s, 1m)")

	flag.Parse()

	return &StructuredConfig{
		Server: Server{
			HTTPAddress:    serverAddress.String(),
			RequestTimeout: requestTimeout,
		},
		Guard: Guard{
			WebhookSecret: webhookSecret,
		},
		Client: Client{
			PushURL:              pushURL,
			PollingURL:           pollingURL,
			Token:                token,
			PollingInterval:      pollingInterval,
			MaxReconnectAttempts: maxReconnectAttempts,
		},
		JSONFilePath: jsonConfigPath,
	}
}

// String returns a canonical host:port string for a NetAddress.
// If neither Host nor Port are set, it returns the empty string.
func (a *NetAddress) String() string {
	if a.Host == "" && a.Port == 0 {
		return ""
	}

	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Set parses the input string of form host:port and populates the NetAddress.
// It validates the port range, checks IP correctness unless host is "localhost",
// and returns an error if the format or values are invalid.
func (a *NetAddress) Set(s string) error {
	hostAndPort := strings.Split(s, ":")
	if len(hostAndPort) != 2 {
		return errors.New("need address in a form `host:port`")
	}

	host := hostAndPort[0]
	port, err := strconv.Atoi(hostAndPort[1])
	if err != nil {
		return err
	}

	if port < 1 {
		return errors.New("port number is a positive integer")
	}

	if host != "localhost" {
		ip := net.ParseIP(hostAndPort[0])
		if ip == nil {
			return errors.New("incorrect IP-address provided")
		}
	}

	a.Host = host
	a.Port = port
	return nil
}
