// Package mqtt publishes submodel repository events to an MQTT broker.
//
// The client is publish-only. It reconnects on its own, keeps a retained
// online/offline status per repository (with a last will for crashes) and
// counts publish outcomes for the metrics endpoint.
//
// # Topics
//
// Events are published below sm-repository/{repositoryID}/ in the layout
// other submodel repository implementations use, so existing consumers
// subscribe unchanged. See Topics.
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Repository.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Publish(client.Topics().SubmodelCreated(), payload, client.QoS(), false)
package mqtt
