// Package mqtt provides MQTT broker connectivity for the shopfloor simulation.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - A channel.Channel adapter used by the synchronizer and the control inbox
//
// # Architecture
//
// The simulation mirrors every entity to a twin viewer through the broker and
// receives control messages (job status, flexibility selection) from it.
//
//	Scenario ↔ Synchronizer ↔ MQTT Broker ↔ Twin viewer / operator tools
//
// # Usage
//
//	topics := channel.Topics{Root: cfg.Simulation.RootTopic}
//	client, err := mqtt.Connect(cfg.MQTT, topics.SimulationStatus())
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	ch, err := mqtt.NewChannel(client, cfg.MQTT.QoS)
package mqtt
