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
	"encoding/json"
	"fmt"
	"io/ioutil"

	"github.com/tinyfs/picosd/pkg/control"
)

//
func NewStatus() *Status {

	st := &Status{}
	st.Runner = *NewRunner(
		"status [-a|--address {address}] [-p|--port {port}]",
		"query card and mount status",
		`Use the status command to query the running serve command's control API
for card identity and mount state.`,
		"", runnerHelpEpilogue, st.Run)

	st.AddBaseSettings()

	return st
}

//
type Status struct {
	Runner
}

//
func (s *Status) Run() error {

	s.ParseSettings()

	resp, err := s.apiCall("GET", "/status", true, nil)
	if err != nil {
		return err
	}
	defer resp.Close()

	body, err := ioutil.ReadAll(resp)
	if err != nil {
		return err
	}

	var stat control.Status
	if err := json.Unmarshal(body, &stat); err != nil {
		return err
	}

	fmt.Printf("\ncard present:  %v\n", stat.CardPresent)
	fmt.Printf("mounted:       %v\n", stat.Mounted)
	fmt.Printf("SDHC/SDXC:     %v\n", stat.SDHC)
	fmt.Printf("sector count:  %d\n", stat.SectorCount)
	fmt.Printf("last error:    %s\n\n", stat.LastError)

	return nil
}
