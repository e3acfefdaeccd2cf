package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"os"

	"github.com/golang/glog"

	"github.com/waybeam/crsfpwm/pkg/bridge"
	fx "github.com/waybeam/crsfpwm/pkg/framework"
	"github.com/waybeam/crsfpwm/pkg/pwm"
	"github.com/waybeam/crsfpwm/pkg/status/mqtt"
	"github.com/waybeam/crsfpwm/pkg/status/msgs"
)

var description = "CRSF over UDP to PWM bridge"

func init() {
	flag.Set("logtostderr", "true")
	flag.StringVar(&description, "description", description, "Description published in bridge meta")
	bridge.SetupFlags()
}

func bridgeMeta(conf *bridge.Config) msgs.BridgeMeta {
	meta := msgs.BridgeMeta{
		Description:   description,
		Port:          conf.Port,
		AddressPolicy: conf.AddressPolicy.String(),
	}
	for index, ch := range conf.Channels() {
		meta.Outputs = append(meta.Outputs, msgs.OutputMeta{Index: index, Channel: ch, Enabled: ch != 0})
	}
	return meta
}

func main() {
	conf := bridge.Default()
	if err := conf.Parse(flag.CommandLine, os.Args[1:]); err != nil {
		glog.Exitf("%v", err)
	}
	defer glog.Flush()
	glog.Infof("waybeam-pwm: %s", conf)

	if err := conf.MuxPlan().Apply(conf.PinMux(), conf.EnabledOutputs()); err != nil {
		glog.Warningf("pin mux: %v", err)
	}

	mappings, err := conf.OpenOutputs(pwm.NewSysfsChip(conf.PWMChip))
	if err != nil {
		glog.Exitf("open outputs: %v", err)
	}

	runner := fx.NewRunner().HandleSignals()
	source, err := bridge.ListenUDP(runner.Context, conf.ListenAddr())
	if err != nil {
		for _, m := range mappings {
			m.Output.Close()
		}
		glog.Exitf("listen %s: %v", conf.ListenAddr(), err)
	}
	glog.Infof("listening on %s", source.LocalAddr())

	observers := bridge.Observers{bridge.LogObserver{}}
	var reporter *mqtt.Reporter
	if conf.MQTTBrokerURL != "" {
		if reporter, err = mqtt.NewReporter(conf.MQTTBrokerURL, conf.BridgeID, bridgeMeta(conf)); err != nil {
			glog.Exitf("mqtt: %v", err)
		}
		observers = append(observers, reporter)
	}

	session, err := conf.NewSession(source, mappings, observers)
	if err != nil {
		glog.Exitf("%v", err)
	}
	runner.Go(fx.NamedRun("session", session))
	if reporter != nil {
		runner.Go(fx.NamedRun("mqtt", reporter))
	}
	err = runner.Wait()
	if cerr := session.Close(); cerr != nil {
		glog.Warningf("close: %v", cerr)
	}
	if err != nil {
		glog.Errorf("%v", err)
		glog.Flush()
		os.Exit(1)
	}
}
