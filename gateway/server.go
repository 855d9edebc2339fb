// Package gateway is the HTTP face of the bridge. Every domain endpoint is
// a thin translation from path/query/body fields to a JSON-RPC call on the
// shared client; the interesting machinery lives in the rpc, events,
// webhook, and daemon packages.
package gateway

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/signalgw/gateway/events"
	"github.com/signalgw/gateway/metrics"
	"github.com/signalgw/gateway/webhook"
)

// Version is reported by GET /v1/about.
const Version = "0.4.0"

// Caller is the one contract the HTTP layer has with the RPC core.
type Caller interface {
	Call(method string, params json.RawMessage) (json.RawMessage, error)
}

// Server serves the REST/WebSocket API.
type Server struct {
	log      *zap.SugaredLogger
	rpc      Caller
	bus      *events.Bus
	metrics  *metrics.Metrics
	webhooks *webhook.Registry

	listenAddr string
	tlsCert    string
	tlsKey     string

	httpServer *http.Server
	boundAddr  atomic.Value // string
	requestID  atomic.Uint64
}

type Option func(s *Server)

func WithListenAddr(addr string) Option {
	return func(s *Server) {
		s.listenAddr = addr
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.log = l.Named("gateway").Sugar()
	}
}

// WithTLS enables HTTPS using the given PEM cert and key files.
func WithTLS(certFile, keyFile string) Option {
	return func(s *Server) {
		s.tlsCert = certFile
		s.tlsKey = keyFile
	}
}

// NewServer constructs the HTTP server. rpc, bus, m, and registry are the
// single shared core handles built once at startup; the server never
// duplicates them.
func NewServer(rpc Caller, bus *events.Bus, m *metrics.Metrics, registry *webhook.Registry, opts ...Option) (*Server, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	s := &Server{
		log:        logger.Named("gateway").Sugar(),
		rpc:        rpc,
		bus:        bus,
		metrics:    m,
		webhooks:   registry,
		listenAddr: "127.0.0.1:8080",
	}
	for _, o := range opts {
		o(s)
	}
	if (s.tlsCert == "") != (s.tlsKey == "") {
		return nil, errors.New("TLS cert and key must be provided together")
	}
	// Built here rather than in Run so that Stop is effective even against
	// a Run that has not reached Serve yet.
	s.httpServer = &http.Server{Handler: s.requestLogger(s.corsHeaders(s.router()))}
	return s, nil
}

// Addr returns the bound listen address once Run has started serving.
func (s *Server) Addr() string {
	if v := s.boundAddr.Load(); v != nil {
		return v.(string)
	}
	return ""
}

// Run serves until Stop is called. If the configured port is taken, it
// falls back to an OS-assigned one instead of failing startup.
func (s *Server) Run() error {
	listener, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		s.log.Warnf("cannot listen on %s (%s), falling back to an ephemeral port", s.listenAddr, err)
		listener, err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("listening TCP: %w", err)
		}
	}

	scheme := "http"
	if s.tlsCert != "" {
		tlsConfig, err := ServerTLSConfig(s.tlsCert, s.tlsKey)
		if err != nil {
			listener.Close()
			return fmt.Errorf("building server TLS config: %w", err)
		}
		listener = tls.NewListener(listener, tlsConfig)
		scheme = "https"
	}

	s.boundAddr.Store(listener.Addr().String())
	s.log.Infof("listening on %s://%s", scheme, listener.Addr())

	err = s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop closes the HTTP server, including hijacked WebSocket connections.
// Calling it before Run keeps Run from ever serving.
func (s *Server) Stop() error {
	return s.httpServer.Close()
}

func (s *Server) router() *httprouter.Router {
	router := httprouter.New()

	// System
	router.GET("/v1/health", s.health)
	router.GET("/v1/about", s.about)
	router.GET("/metrics", s.prometheusMetrics)

	// Messages
	router.POST("/v1/send", s.sendV1)
	router.POST("/v2/send", s.sendV2)
	router.GET("/v1/receive/:number", s.receiveWS)
	router.DELETE("/v1/remote-delete/:number", s.remoteDelete)

	// Events
	router.GET("/v1/events/:number", s.sseEvents)

	// Webhooks
	router.POST("/v1/webhooks", s.createWebhook)
	router.GET("/v1/webhooks", s.listWebhooks)
	router.DELETE("/v1/webhooks/:id", s.deleteWebhook)

	// Accounts
	router.GET("/v1/accounts", s.listAccounts)
	router.POST("/v1/register/:number", s.register)
	router.POST("/v1/register/:number/verify/:token", s.verify)
	router.POST("/v1/unregister/:number", s.unregister)
	router.POST("/v1/accounts/:number/rate-limit-challenge", s.rateLimitChallenge)
	router.PUT("/v1/accounts/:number/settings", s.updateAccountSettings)
	router.POST("/v1/accounts/:number/pin", s.setPin)
	router.DELETE("/v1/accounts/:number/pin", s.removePin)
	router.POST("/v1/accounts/:number/username", s.setUsername)
	router.DELETE("/v1/accounts/:number/username", s.removeUsername)

	// Devices
	router.GET("/v1/qrcodelink", s.qrCodeLink)
	router.GET("/v1/qrcodelink/raw", s.qrCodeLinkRaw)
	router.GET("/v1/devices/:number", s.listDevices)
	router.POST("/v1/devices/:number", s.linkDevice)
	// local-data shares the wildcard with :device_id; removeDevice
	// dispatches on the value.
	router.DELETE("/v1/devices/:number/:device_id", s.removeDevice)

	// Typing / receipts / reactions
	router.PUT("/v1/typing-indicator/:number", s.startTyping)
	router.DELETE("/v1/typing-indicator/:number", s.stopTyping)
	router.POST("/v1/receipts/:number", s.sendReceipt)
	router.POST("/v1/reactions/:number", s.sendReaction)
	router.DELETE("/v1/reactions/:number", s.removeReaction)

	// Search / contacts
	router.GET("/v1/search/:number", s.searchNumbers)
	router.GET("/v1/contacts/:number", s.listContacts)
	router.PUT("/v1/contacts/:number", s.updateContact)
	router.GET("/v1/contacts/:number/:recipient", s.getContact)
	router.GET("/v1/contacts/:number/:recipient/avatar", s.contactAvatar)
	router.POST("/v1/contacts/:number/sync", s.syncContacts)

	// Groups
	router.GET("/v1/groups/:number", s.listGroups)
	router.POST("/v1/groups/:number", s.createGroup)
	router.GET("/v1/groups/:number/:groupid", s.getGroup)
	router.PUT("/v1/groups/:number/:groupid", s.updateGroup)
	router.DELETE("/v1/groups/:number/:groupid", s.deleteGroup)
	router.GET("/v1/groups/:number/:groupid/avatar", s.groupAvatar)
	router.POST("/v1/groups/:number/:groupid/members", s.addGroupMembers)
	router.DELETE("/v1/groups/:number/:groupid/members", s.removeGroupMembers)
	router.POST("/v1/groups/:number/:groupid/admins", s.addGroupAdmins)
	router.DELETE("/v1/groups/:number/:groupid/admins", s.removeGroupAdmins)
	router.POST("/v1/groups/:number/:groupid/join", s.joinGroup)
	router.POST("/v1/groups/:number/:groupid/quit", s.quitGroup)
	router.POST("/v1/groups/:number/:groupid/block", s.blockGroup)

	// Profiles / identities
	router.PUT("/v1/profiles/:number", s.updateProfile)
	router.GET("/v1/identities/:number", s.listIdentities)
	router.PUT("/v1/identities/:number/trust/:numbertotrust", s.trustIdentity)

	// Polls / stickers / attachments
	router.POST("/v1/polls/:number", s.createPoll)
	router.POST("/v1/polls/:number/vote", s.votePoll)
	router.DELETE("/v1/polls/:number", s.closePoll)
	router.GET("/v1/sticker-packs/:number", s.listStickerPacks)
	router.POST("/v1/sticker-packs/:number", s.installStickerPack)
	router.GET("/v1/attachments", s.listAttachments)
	router.GET("/v1/attachments/:attachment", s.getAttachment)
	router.DELETE("/v1/attachments/:attachment", s.deleteAttachment)

	// Configuration
	router.GET("/v1/configuration", s.globalConfig)
	router.POST("/v1/configuration", s.setGlobalConfig)
	router.GET("/v1/configuration/:number/settings", s.accountConfig)
	router.POST("/v1/configuration/:number/settings", s.setAccountConfig)

	return router
}
