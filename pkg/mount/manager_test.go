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

package mount

import (
	"context"
	"testing"
	"time"

	"github.com/tinyfs/picosd/pkg/blockdev"
	"github.com/tinyfs/picosd/pkg/bus"
	"github.com/tinyfs/picosd/pkg/sdcard"
)

type fakeVolume struct {
	mounts   int
	unmounts int
	failNext bool
}

func (v *fakeVolume) Mount() error {
	if v.failNext {
		v.failNext = false
		return errFakeMount
	}
	v.mounts++
	return nil
}

func (v *fakeVolume) Unmount() error {
	v.unmounts++
	return nil
}

var errFakeMount = &mountError{"fake mount failure"}

type mountError struct{ msg string }

func (e *mountError) Error() string { return e.msg }

func newTestManager(t *testing.T) (*Manager, *bus.FakeBus, *fakeVolume) {
	t.Helper()
	fb := bus.NewFakeBus(4096, true)
	dev := blockdev.New(sdcard.New(fb))
	vol := &fakeVolume{}
	return NewManager(dev, vol, 10*time.Millisecond), fb, vol
}

func TestPollMountsOnCardPresence(t *testing.T) {
	m, _, vol := newTestManager(t)

	if m.Ready() != true {
		t.Fatalf("Ready() = false, want true after insertion poll")
	}
	if vol.mounts != 1 {
		t.Errorf("mounts = %d, want 1", vol.mounts)
	}
}

func TestPollUnmountsOnCardRemoval(t *testing.T) {
	m, fb, vol := newTestManager(t)

	m.Poll()
	if !m.Ready() {
		t.Fatalf("expected mounted after first poll")
	}

	fb.SetPresent(false)
	m.Poll()
	if m.Ready() {
		t.Errorf("Ready() = true after card removal, want false")
	}
	if vol.unmounts != 1 {
		t.Errorf("unmounts = %d, want 1", vol.unmounts)
	}
}

func TestPollIsIdempotentWhileMounted(t *testing.T) {
	m, _, vol := newTestManager(t)

	m.Poll()
	m.Poll()
	m.Poll()

	if vol.mounts != 1 {
		t.Errorf("mounts = %d, want 1 (repeated polls shouldn't remount)", vol.mounts)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	m, _, _ := newTestManager(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	if !m.Ready() {
		t.Errorf("expected card to have been mounted during Run")
	}
}
