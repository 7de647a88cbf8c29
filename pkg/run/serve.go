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

package run

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tinyfs/picosd/pkg/blockdev"
	"github.com/tinyfs/picosd/pkg/bus"
	"github.com/tinyfs/picosd/pkg/control"
	"github.com/tinyfs/picosd/pkg/fatvolume"
	"github.com/tinyfs/picosd/pkg/mount"
	"github.com/tinyfs/picosd/pkg/sdcard"
)

//
func NewServe() *Serve {

	s := &Serve{}
	s.Runner = *NewRunner(
		"serve -d|--device {serial port} [-a|--address {address}] [-p|--port {port}]",
		"card server & control API command",
		`Use the serve command for running the SD card driver against a serial-attached
SPI bridge, alongside the diagnostics control API and the mount reconciliation loop.`,
		"", `- Logging can be configured with these environment variables:

  LOG_FORMAT		set to 'json' for JSON logging
  LOG_FORCE_COLORS	set to non-empty for forcing colorized log entries
  LOG_METHODS		set to non-empty for including methods in log
  LOG_LEVEL		panic, fatal, error, warn, info, debug, trace

`+runnerHelpEpilogue, s.Run)

	s.AddBaseSettings()
	s.AddSetting(&s.Device, "device", "d", "PICOSD_DEVICE", nil,
		"serial port device for the SPI bridge", true)
	s.AddSetting(&s.CRC, "crc", "", "PICOSD_CRC", false,
		"enable CRC7/CRC16 checking", false)

	return s
}

//
type Serve struct {
	//
	Runner
	//
	Device string
	CRC    bool
}

//
func (s *Serve) Run() error {

	s.ParseSettings()

	link, err := bus.OpenSerialBus(s.Device)
	if err != nil {
		return err
	}

	engine := sdcard.New(link, sdcard.WithCRC(s.CRC))
	dev := blockdev.New(engine)
	mgr := mount.NewManager(dev, fatvolume.NopVolume{}, 500*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wg := &sync.WaitGroup{}
	wg.Add(2)

	go func() {
		defer wg.Done()
		mgr.Run(ctx)
		log.Info("mount manager stopped")
	}()

	api := control.NewAPIServer(
		s.Address+":"+strconv.Itoa(s.Port), engine, dev, mgr)
	go func() {
		defer wg.Done()
		if err := api.Serve(); err != nil {
			log.Errorf("control API closed with error: %v", err)
		} else {
			log.Info("control API stopped")
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sigCount := 0
	done := make(chan bool)

	for {
		select {

		case sig := <-sigs:
			log.WithField("signal", sig).Info("signal received")
			sigCount++

			switch sigCount {

			case 1:
				go func() {
					log.Info("shutting down, hit Ctrl-C twice to force exit...")
					api.Stop()
					cancel()
					wg.Wait()
					link.Close()
					log.Info("picosd stopped")
					done <- true
				}()

			case 2:
				log.Warn("shutdown in progress, hit Ctrl-C again to force exit")

			default:
				log.Warn("forcing process to stop immediately")
				os.Exit(1)
			}

		case <-done:
			return nil
		}
	}
}
