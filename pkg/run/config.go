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
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"

	"github.com/tinyfs/picosd/pkg/control"
)

//
func NewConfig() *Config {

	c := &Config{}
	c.Runner = *NewRunner(
		"config [-a|--address {address}] [-p|--port {port}] [--crc {on|off}] [--baud {hz}]",
		"change configuration of a running serve command",
		`
Use the config command to toggle CRC checking or change the SPI baud rate on a
running serve command, via its control API. A baud rate change applies at once
and lasts until the next card reinsertion re-runs init; a CRC change takes effect
at the next card reinsertion. Neither is persisted across a process restart.`,
		"", runnerHelpEpilogue, c.Run)

	c.AddBaseSettings()
	c.AddSetting(&c.CRC, "crc", "", "", "", "enable or disable CRC checking: 'on' or 'off'", false)
	c.AddSetting(&c.Baud, "baud", "", "", -1, "SPI baud rate in Hz", false)

	return c
}

//
type Config struct {
	Runner
	CRC  string
	Baud int
}

//
func (c *Config) Run() error {

	c.ParseSettings()

	if c.CRC == "" && c.Baud == -1 {
		fmt.Println("\nnothing to configure")
		return nil
	}

	req := control.ConfigRequest{}
	if c.CRC != "" {
		enabled := c.CRC == "on"
		req.CRCEnabled = &enabled
	}
	if c.Baud != -1 {
		req.BaudHz = &c.Baud
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	resp, err := c.apiCall("PUT", "/config", true, bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Close()

	msg, err := ioutil.ReadAll(resp)
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", msg)
	return nil
}
