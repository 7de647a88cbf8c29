/*
   picosd - SD/SPI card driver and FAT block device adapter
   Copyright (c) 2026, the picosd authors

   This file is part of picosd.

   picosd is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   picosd is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with picosd. If not, see <http://www.gnu.org/licenses/>.
*/

// Package control exposes an HTTP diagnostics API over the card, block
// device, and mount manager: current status, a raw sector peek for bench
// debugging, and a config endpoint to retune CRC checking or baud rate
// without a restart.
package control

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/tinyfs/picosd/pkg/blockdev"
	"github.com/tinyfs/picosd/pkg/mount"
	"github.com/tinyfs/picosd/pkg/sdcard"
)

// APIServer is the lifecycle contract pkg/run's serve command drives: Serve blocks until
// Stop is called or the listener fails.
type APIServer interface {
	Serve() error
	Stop() error
}

// lockTimeout bounds how long a handler waits for exclusive access to the
// engine before answering busy, mirroring blockdev.Device's own lock wait.
const lockTimeout = time.Second

// lockEngine acquires the engine directly for handlers that bypass
// blockdev.Device and touch sdcard.Engine's own fields (CardPresent, IsSDHC,
// SetWantCRC, SetBaud). Callers must defer a.engine.Unlock() on success.
func (a *api) lockEngine() error {
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	if !a.engine.Lock(ctx) {
		return fmt.Errorf("control: engine busy")
	}
	return nil
}

// NewAPIServer returns an APIServer bound to engine, dev, and mgr, serving
// on addr.
func NewAPIServer(addr string, engine *sdcard.Engine, dev *blockdev.Device, mgr *mount.Manager) APIServer {
	return &api{address: addr, engine: engine, dev: dev, mgr: mgr}
}

type api struct {
	address string
	engine  *sdcard.Engine
	dev     *blockdev.Device
	mgr     *mount.Manager
	server  *http.Server
}

func (a *api) Serve() error {

	router := mux.NewRouter().StrictSlash(true)

	addRoute(router, "status", "GET", "/status", a.status)
	addRoute(router, "sector", "GET", "/sector/{n:[0-9]+}", a.sector)
	addRoute(router, "config", "PUT", "/config", a.config)

	addr := a.address
	if !strings.Contains(addr, ":") {
		addr = fmt.Sprintf("%s:8080", a.address)
	}

	log.Infof("picosd control API starts listening on %s", addr)
	a.server = &http.Server{Addr: addr, Handler: router}

	err := a.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *api) Stop() error {
	if a.server != nil {
		log.Info("control API stopping...")
		err := a.server.Shutdown(context.Background())
		a.server = nil
		return err
	}
	return nil
}

func addRoute(r *mux.Router, name, method, pattern string, handler http.HandlerFunc) {
	r.Methods(method).
		Path(pattern).
		Name(name).
		Handler(requestLogger(handler, name))
}

func requestLogger(inner http.Handler, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		log.WithFields(log.Fields{
			"remote": r.RemoteAddr,
			"method": r.Method,
			"path":   r.RequestURI,
		}).Debugf("API BEGIN | %s", name)

		start := time.Now()
		inner.ServeHTTP(w, r)

		log.WithFields(log.Fields{
			"remote":   r.RemoteAddr,
			"method":   r.Method,
			"path":     r.RequestURI,
			"duration": time.Since(start),
		}).Debugf("API END   | %s", name)
	})
}

func (a *api) status(w http.ResponseWriter, req *http.Request) {

	// mgr.Ready() runs its own Poll, which locks/unlocks the engine through
	// dev.Status/dev.Init; it must complete before this handler takes the
	// lock itself, or the two would deadlock on the same non-reentrant lock.
	mounted := a.mgr.Ready()

	if handleError(a.lockEngine(), http.StatusLocked, w) {
		return
	}
	defer a.engine.Unlock()

	stat := &Status{
		CardPresent: a.engine.CardPresent(),
		Mounted:     mounted,
		SDHC:        a.engine.IsSDHC(),
		LastError:   a.engine.LastError().Error(),
	}
	if count, err := a.engine.SectorCount(); err == nil {
		stat.SectorCount = count
	}

	sendJSONReply(stat, http.StatusOK, w)
}

func (a *api) sector(w http.ResponseWriter, req *http.Request) {

	n, err := strconv.ParseUint(mux.Vars(req)["n"], 10, 32)
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	buf := make([]byte, sdcard.SectorSize)
	if handleError(a.dev.Read(0, buf, uint32(n), 1), http.StatusInternalServerError, w) {
		return
	}

	sendJSONReply(&SectorDump{Sector: uint32(n), Hex: hex.EncodeToString(buf)}, http.StatusOK, w)
}

func (a *api) config(w http.ResponseWriter, req *http.Request) {

	var cfg ConfigRequest
	if handleError(json.NewDecoder(req.Body).Decode(&cfg), http.StatusUnprocessableEntity, w) {
		return
	}

	if handleError(a.lockEngine(), http.StatusLocked, w) {
		return
	}
	defer a.engine.Unlock()

	if cfg.CRCEnabled != nil {
		a.engine.SetWantCRC(*cfg.CRCEnabled)
	}
	if cfg.BaudHz != nil {
		if handleError(a.engine.SetBaud(*cfg.BaudHz), http.StatusInternalServerError, w) {
			return
		}
	}

	sendReply([]byte("configured"), http.StatusOK, w)
}

func setHeaders(h http.Header, json bool) {
	if json {
		h.Set("Content-Type", "application/json; charset=UTF-8")
	} else {
		h.Set("Content-Type", "text/plain; charset=UTF-8")
	}
}

func handleError(e error, statusCode int, w http.ResponseWriter) bool {

	if e == nil {
		return false
	}

	log.Errorf("%v", e)

	setHeaders(w.Header(), false)
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(fmt.Sprintf("%v\n", e))); err != nil {
		log.Errorf("problem writing error: %v", err)
	}

	return true
}

func sendReply(body []byte, statusCode int, w http.ResponseWriter) {
	setHeaders(w.Header(), false)
	w.WriteHeader(statusCode)
	if _, err := fmt.Fprintf(w, "%s\n", body); err != nil {
		log.Errorf("problem sending reply: %v", err)
	}
}

func sendJSONReply(obj interface{}, statusCode int, w http.ResponseWriter) {
	setHeaders(w.Header(), true)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		log.Errorf("problem writing error: %v", err)
	}
}
