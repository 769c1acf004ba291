// Printlink Core
// Copyright (c) 2026 The Printlink Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Printlink Core.
//
// Printlink Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Printlink Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Printlink Core.  If not, see <http://www.gnu.org/licenses/>.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/olahol/melody"
	"github.com/printlink/printlink-core/pkg/api/methods"
	"github.com/printlink/printlink-core/pkg/api/middleware"
	"github.com/printlink/printlink-core/pkg/api/models"
	"github.com/printlink/printlink-core/pkg/api/models/requests"
	"github.com/printlink/printlink-core/pkg/api/validation"
	"github.com/printlink/printlink-core/pkg/config"
	"github.com/printlink/printlink-core/pkg/database"
	"github.com/printlink/printlink-core/pkg/helpers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	maxRequestSize  = 1 << 20
	shutdownTimeout = 5 * time.Second
)

var (
	JSONRPCErrorParseError = models.ErrorObject{
		Code:    -32700,
		Message: "Parse error",
	}
	JSONRPCErrorInvalidRequest = models.ErrorObject{
		Code:    -32600,
		Message: "Invalid Request",
	}
	JSONRPCErrorMethodNotFound = models.ErrorObject{
		Code:    -32601,
		Message: "Method not found",
	}
	JSONRPCErrorInvalidParams = models.ErrorObject{
		Code:    -32602,
		Message: "Invalid params",
	}
)

const jsonRPCServerErrorCode = -32000

var methodMap = map[string]func(requests.RequestEnv) (any, error){
	// printer
	models.MethodPrinterConnect:    methods.HandlePrinterConnect,
	models.MethodPrinterDisconnect: methods.HandlePrinterDisconnect,
	models.MethodPrinterStatus:     methods.HandlePrinterStatus,
	models.MethodPrinterQueue:      methods.HandlePrinterQueue,
	models.MethodPrinterHome:       methods.HandlePrinterHome,
	models.MethodPrinterMove:       methods.HandlePrinterMove,
	models.MethodPrinterHotend:     methods.HandlePrinterHotend,
	models.MethodPrinterBed:        methods.HandlePrinterBed,
	models.MethodPrinterPosition:   methods.HandlePrinterPosition,
	models.MethodPrinterMotorsOff:  methods.HandlePrinterMotorsOff,
	models.MethodPrinterReboot:     methods.HandlePrinterReboot,
	models.MethodPrinterPorts:      methods.HandlePrinterPorts,
	models.MethodPrinterBabystep:   methods.HandlePrinterBabystep,
	models.MethodPrinterRatios:     methods.HandlePrinterRatios,
	// printing
	models.MethodPrintStart:   methods.HandlePrintStart,
	models.MethodPrintSdStart: methods.HandlePrintSdStart,
	models.MethodPrintStop:    methods.HandlePrintStop,
	models.MethodPrintPause:   methods.HandlePrintPause,
	models.MethodPrintResume:  methods.HandlePrintResume,
	models.MethodSdDelete:     methods.HandleSdDelete,
	models.MethodJobsHistory:  methods.HandleJobsHistory,
	models.MethodJobsExport:   methods.HandleJobsExport,
	// settings
	models.MethodSettings:       methods.HandleSettings,
	models.MethodSettingsUpdate: methods.HandleSettingsUpdate,
	models.MethodSettingsReload: methods.HandleSettingsReload,
	models.MethodSettingsLogs:   methods.HandleLogsDownload,
	// utils
	models.MethodVersion: methods.HandleVersion,
}

// ServerArgs holds everything request handlers need access to.
type ServerArgs struct {
	Printer       requests.Printer
	Jobs          database.JobDBI
	Config        *config.Instance
	Limiter       *middleware.IPRateLimiter
	Ports         func() ([]helpers.SerialPort, error)
	Notifications <-chan models.Notification
	LogDir        string
}

type Server struct {
	args    ServerArgs
	melody  *melody.Melody
	limiter *middleware.IPRateLimiter
	router  chi.Router
}

func NewServer(args ServerArgs) *Server { //nolint:gocritic // config struct passed once at startup
	if args.Ports == nil {
		args.Ports = helpers.ListSerialPorts
	}
	limiter := args.Limiter
	if limiter == nil {
		limiter = middleware.NewIPRateLimiter()
	}

	s := &Server{
		args:    args,
		melody:  melody.New(),
		limiter: limiter,
	}
	s.melody.Config.MaxMessageSize = maxRequestSize
	s.melody.Upgrader.CheckOrigin = s.checkOrigin
	s.melody.HandleMessage(middleware.WebSocketRateLimitHandler(limiter, s.handleWSMessage))
	s.melody.HandleConnect(func(session *melody.Session) {
		log.Debug().Str("remote", session.Request.RemoteAddr).Msg("api client connected")
	})
	s.melody.HandleDisconnect(func(session *melody.Session) {
		log.Debug().Str("remote", session.Request.RemoteAddr).Msg("api client disconnected")
	})
	s.router = s.newRouter()
	return s
}

func (s *Server) newRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.NoCache)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.args.Config.AllowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/api", func(w http.ResponseWriter, r *http.Request) {
		err := s.melody.HandleRequest(w, r)
		if err != nil {
			log.Error().Err(err).Msg("handling websocket request")
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.HTTPRateLimitMiddleware(s.limiter))
		r.Use(chimiddleware.Timeout(config.APIRequestTimeout))
		r.Post("/api", s.handlePost)
		r.Handle("/metrics", promhttp.Handler())
	})

	return r
}

// checkOrigin allows non-browser clients, loopback pages and any origin in
// the allowed list. cors handles the same list for plain HTTP.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || middleware.IsLoopbackAddr(r.RemoteAddr) {
		return true
	}
	for _, allowed := range s.args.Config.AllowedOrigins() {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	log.Warn().Str("origin", origin).Msg("rejected websocket origin")
	return false
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves the API on ln until ctx is cancelled, then shuts down
// gracefully and disconnects all websocket sessions.
func (s *Server) Start(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	s.limiter.StartCleanup(ctx)
	go s.broadcastNotifications(ctx)

	errs := make(chan error, 1)
	go func() {
		log.Info().Str("address", ln.Addr().String()).Msg("starting api server")
		errs <- srv.Serve(ln)
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("stopping api server")
	if err := s.melody.Close(); err != nil {
		log.Warn().Err(err).Msg("closing websocket sessions")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}

// Listen opens the configured API address.
func Listen(cfg *config.Instance) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", cfg.APIListen())
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.APIListen(), err)
	}
	return ln, nil
}

func (s *Server) broadcastNotifications(ctx context.Context) {
	if s.args.Notifications == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case notif, ok := <-s.args.Notifications:
			if !ok {
				return
			}
			data, err := json.Marshal(models.NotificationObject{
				JSONRPC: "2.0",
				Method:  notif.Method,
				Params:  notif.Params,
			})
			if err != nil {
				log.Error().Err(err).Msg("marshalling notification")
				continue
			}
			if err := s.melody.Broadcast(data); err != nil &&
				!errors.Is(err, melody.ErrClosed) {
				log.Error().Err(err).Msg("broadcasting notification")
			}
		}
	}
}

// errorObject maps a handler error to its JSON-RPC error.
func errorObject(err error) models.ErrorObject {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr),
		errors.Is(err, validation.ErrMissingParams),
		errors.Is(err, validation.ErrInvalidParams):
		return models.ErrorObject{
			Code:    JSONRPCErrorInvalidParams.Code,
			Message: err.Error(),
		}
	default:
		return models.ErrorObject{
			Code:    jsonRPCServerErrorCode,
			Message: err.Error(),
		}
	}
}

// processMessage handles one raw JSON-RPC message and returns the encoded
// reply, or nil when nothing should be sent back.
func (s *Server) processMessage(ctx context.Context, msg []byte, remoteAddr string) []byte {
	if !json.Valid(msg) {
		log.Warn().Msg("api message is not valid json")
		return encodeError(models.NullRPCID, JSONRPCErrorParseError)
	}

	var req models.RequestObject
	if err := json.Unmarshal(msg, &req); err != nil {
		return encodeError(models.NullRPCID, JSONRPCErrorInvalidRequest)
	}
	if req.JSONRPC != "2.0" {
		log.Warn().Str("jsonrpc", req.JSONRPC).Msg("unsupported payload version")
		return encodeError(idOrNull(req.ID), JSONRPCErrorInvalidRequest)
	}
	if req.Method == "" {
		// responses from clients are not used
		log.Debug().RawJSON("msg", msg).Msg("ignoring message without method")
		return nil
	}
	if req.ID.IsAbsent() {
		log.Debug().Str("method", req.Method).Msg("received notification, ignoring")
		return nil
	}

	fn, ok := methodMap[strings.ToLower(req.Method)]
	if !ok {
		log.Warn().Str("method", req.Method).Msg("unknown method")
		return encodeError(req.ID, JSONRPCErrorMethodNotFound)
	}

	log.Debug().Str("method", req.Method).Str("id", req.ID.String()).Msg("received request")
	result, err := fn(requests.RequestEnv{
		Context: ctx,
		Printer: s.args.Printer,
		Config:  s.args.Config,
		Jobs:    s.args.Jobs,
		Ports:   s.args.Ports,
		LogDir:  s.args.LogDir,
		ID:      req.ID,
		Params:  req.Params,
		IsLocal: middleware.IsLoopbackAddr(remoteAddr),
	})
	if err != nil {
		log.Warn().Err(err).Str("method", req.Method).Msg("request failed")
		return encodeError(req.ID, errorObject(err))
	}

	data, err := json.Marshal(models.ResponseObject{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
	})
	if err != nil {
		log.Error().Err(err).Msg("marshalling response")
		return encodeError(req.ID, models.ErrorObject{
			Code:    jsonRPCServerErrorCode,
			Message: "error encoding result",
		})
	}
	return data
}

func idOrNull(id models.RPCID) models.RPCID {
	if id.IsAbsent() {
		return models.NullRPCID
	}
	return id
}

func encodeError(id models.RPCID, errObj models.ErrorObject) []byte {
	data, err := json.Marshal(models.ResponseErrorObject{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &errObj,
	})
	if err != nil {
		log.Error().Err(err).Msg("marshalling error response")
		return nil
	}
	return data
}

func (s *Server) handleWSMessage(session *melody.Session, msg []byte) {
	// heartbeat
	if bytes.Equal(msg, []byte("ping")) {
		if err := session.Write([]byte("pong")); err != nil {
			log.Error().Err(err).Msg("sending pong")
		}
		return
	}

	ctx := session.Request.Context()
	reply := s.processMessage(ctx, msg, session.Request.RemoteAddr)
	if reply == nil {
		return
	}
	if err := session.Write(reply); err != nil {
		log.Error().Err(err).Msg("sending response")
	}
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestSize))
	if err != nil {
		http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
		return
	}

	reply := s.processMessage(r.Context(), body, r.RemoteAddr)
	if reply == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(reply); err != nil {
		log.Error().Err(err).Msg("writing http response")
	}
}
