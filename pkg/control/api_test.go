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

package control

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/tinyfs/picosd/pkg/blockdev"
	"github.com/tinyfs/picosd/pkg/bus"
	"github.com/tinyfs/picosd/pkg/fatvolume"
	"github.com/tinyfs/picosd/pkg/mount"
	"github.com/tinyfs/picosd/pkg/sdcard"
)

// router builds the same route table Serve installs, without binding a
// real listener, so handlers can be exercised through httptest.
func (a *api) router() *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	addRoute(router, "status", "GET", "/status", a.status)
	addRoute(router, "sector", "GET", "/sector/{n:[0-9]+}", a.sector)
	addRoute(router, "config", "PUT", "/config", a.config)
	return router
}

func newTestAPI(t *testing.T) (*api, *bus.FakeBus) {
	t.Helper()
	fb := bus.NewFakeBus(4096, true)
	engine := sdcard.New(fb)
	if err := engine.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	dev := blockdev.New(engine)
	if err := dev.Init(0); err != nil {
		t.Fatalf("dev.Init() error = %v", err)
	}
	mgr := mount.NewManager(dev, fatvolume.NopVolume{}, time.Second)
	return &api{engine: engine, dev: dev, mgr: mgr}, fb
}

func TestStatusEndpoint(t *testing.T) {
	a, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	a.router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var stat Status
	if err := json.Unmarshal(rec.Body.Bytes(), &stat); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !stat.CardPresent {
		t.Errorf("CardPresent = false, want true")
	}
	if stat.SectorCount == 0 {
		t.Errorf("SectorCount = 0, want a positive count")
	}
}

func TestSectorEndpoint(t *testing.T) {
	a, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/sector/10", nil)
	rec := httptest.NewRecorder()
	a.router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rec.Code, rec.Body.String())
	}
	var dump SectorDump
	if err := json.Unmarshal(rec.Body.Bytes(), &dump); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if dump.Sector != 10 {
		t.Errorf("Sector = %d, want 10", dump.Sector)
	}
	if len(dump.Hex) != sdcard.SectorSize*2 {
		t.Errorf("Hex len = %d, want %d", len(dump.Hex), sdcard.SectorSize*2)
	}
}

func TestConfigEndpointTogglesCRC(t *testing.T) {
	a, _ := newTestAPI(t)

	crc := true
	body, _ := json.Marshal(ConfigRequest{CRCEnabled: &crc})
	req := httptest.NewRequest(http.MethodPut, "/config", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	a.router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rec.Code, rec.Body.String())
	}
	if !a.engine.WantCRC() {
		t.Errorf("engine.WantCRC() = false, want true after config PUT")
	}
}
