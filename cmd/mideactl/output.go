package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/joshp123/mideactl/internal/appliance"
	"github.com/joshp123/mideactl/internal/control"
)

type outputMode struct {
	json   bool
	stdout io.Writer
}

// jsonReport is the machine-readable rendering of one appliance.
type jsonReport struct {
	Address        string `json:"address"`
	ID             string `json:"id"`
	SerialNumber   string `json:"serial_number"`
	Model          string `json:"model"`
	SSID           string `json:"ssid"`
	Online         bool   `json:"online"`
	Name           string `json:"name"`
	Humidity       int    `json:"humidity"`
	TargetHumidity int    `json:"target_humidity"`
	FanSpeed       int    `json:"fan_speed"`
	FanName        string `json:"fan_name"`
	TankFull       bool   `json:"tank_full"`
	Mode           int    `json:"mode"`
	ModeName       string `json:"mode_name"`
	IonMode        bool   `json:"ion_mode"`
	Running        bool   `json:"running"`
	Token          string `json:"token,omitempty"`
	Key            string `json:"key,omitempty"`
}

func (o outputMode) printReport(r control.Report, showCreds bool) error {
	return o.printReports([]control.Report{r}, showCreds)
}

func (o outputMode) printReports(reports []control.Report, showCreds bool) error {
	if o.json {
		out := make([]jsonReport, 0, len(reports))
		for _, r := range reports {
			out = append(out, toJSONReport(r, showCreds))
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("format json: %w", err)
		}
		fmt.Fprintln(o.stdout, string(data))
		return nil
	}

	for _, r := range reports {
		o.printBlock(r, showCreds)
	}
	return nil
}

// printBlock writes the fixed per-appliance text block.
func (o outputMode) printBlock(r control.Report, showCreds bool) {
	w := o.stdout
	fmt.Fprintf(w, "addr=%s\n", r.Info.Address)
	fmt.Fprintf(w, "        id      = %s\n", r.Info.ID)
	fmt.Fprintf(w, "        s/n     = %s\n", r.Info.SerialNumber)
	fmt.Fprintf(w, "        model   = %s\n", r.Info.Model)
	fmt.Fprintf(w, "        ssid    = %s\n", r.Info.SSID)
	fmt.Fprintf(w, "        online  = %t\n", r.Info.Online)
	fmt.Fprintf(w, "        name    = %s\n", r.State.Name)
	fmt.Fprintf(w, "        humid%%  = %d\n", r.State.Humidity)
	fmt.Fprintf(w, "        target%% = %d\n", r.State.TargetHumidity)
	fmt.Fprintf(w, "        fan     = %d\n", r.State.FanSpeed)
	fmt.Fprintf(w, "        tank    = %t\n", r.State.TankFull)
	fmt.Fprintf(w, "        mode    = %d\n", r.State.Mode)
	fmt.Fprintf(w, "        ion     = %t\n", r.State.IonMode)
	if showCreds {
		fmt.Fprintf(w, "        token   = %s\n", r.Info.Token)
		fmt.Fprintf(w, "        key     = %s\n", r.Info.Key)
	}
}

func toJSONReport(r control.Report, showCreds bool) jsonReport {
	out := jsonReport{
		Address:        r.Info.Address,
		ID:             r.Info.ID,
		SerialNumber:   r.Info.SerialNumber,
		Model:          r.Info.Model,
		SSID:           r.Info.SSID,
		Online:         r.Info.Online,
		Name:           r.State.Name,
		Humidity:       r.State.Humidity,
		TargetHumidity: r.State.TargetHumidity,
		FanSpeed:       r.State.FanSpeed,
		FanName:        appliance.FanSpeedName(r.State.FanSpeed),
		TankFull:       r.State.TankFull,
		Mode:           r.State.Mode,
		ModeName:       appliance.ModeName(r.State.Mode),
		IonMode:        r.State.IonMode,
		Running:        r.State.Running,
	}
	if showCreds {
		out.Token = r.Info.Token
		out.Key = r.Info.Key
	}
	return out
}
