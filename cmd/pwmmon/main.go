package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"reflect"
	"strings"

	fx "github.com/waybeam/crsfpwm/pkg/framework"
	"github.com/waybeam/crsfpwm/pkg/status/mqtt"
	"github.com/waybeam/crsfpwm/pkg/status/msgs"
)

var (
	mqttURL    = "mqtt://localhost:1883/waybeam/"
	topic      = "#"
	outputJSON bool
)

func init() {
	if val := os.Getenv("WAYBEAM_PWM_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&topic, "topic", topic, "Topic filter under the URL prefix.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print messages in JSON.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	q.Sub(topic, mqtt.Handler(func(topic string, payload []byte) {
		if strings.HasSuffix(topic, "/"+mqtt.TopicMeta) {
			if len(payload) == 0 {
				log.Printf("%s: offline", topic)
				return
			}
			log.Printf("%s: %s", topic, string(payload))
			return
		}
		typed, err := msgs.DecodeTyped(payload)
		if err != nil {
			log.Printf("%s: bad message: %v", topic, err)
			return
		}
		msg, err := typed.Decode()
		if err != nil {
			log.Printf("%s: decode error: (type_id=%x) %v", topic, typed.TypeId, err)
			return
		}
		name := reflect.Indirect(reflect.ValueOf(msg)).Type().Name()
		if outputJSON {
			out, err := json.Marshal(msg)
			if err != nil {
				log.Printf("%s: %v", topic, err)
				return
			}
			log.Printf("%s: [%s] %s", topic, name, out)
			return
		}
		log.Printf("%s: [%s] %s", topic, name, msg.String())
	}))

	monitor := fx.RunFunc(func(ctx context.Context) error {
		if token := q.Connect(); token.Wait() && token.Error() != nil {
			return token.Error()
		}
		<-ctx.Done()
		return q.Close()
	})
	if err := fx.NewRunner().HandleSignals().Go(monitor).Wait(); err != nil {
		log.Fatalln(err)
	}
}
