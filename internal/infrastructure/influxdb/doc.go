// Package influxdb keeps the value history of numeric Properties.
//
// Client satisfies submodel.ValueRecorder: after each successful write
// with a numeric value the repository queues a point in the
// "element_value" measurement, tagged with the repository, submodel and
// idShort path. Points are batched by the influxdb-client-go write API
// and failures surface through SetOnError.
//
// History reads the same points back with a Flux query and backs the
// API's element history route.
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Repository.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	repo.SetValueRecorder(client)
package influxdb
