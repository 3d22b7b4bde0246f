// Package dataprocessing turns an uploaded table of geolocated specimen
// records into the augmented dataset the dashboard charts read.
//
// # Architecture
//
// A Pipeline runs four stages strictly in order:
//
//  1. ValidateSchema: requires lat and lon (or its alias long) and turns
//     unusable coordinates into the sentinel.
//  2. PrepareFeatures: fills missing cells with the sentinel, derives the
//     lat-lon location key and ensures a locality field.
//  3. Aggregator.Aggregate: counts neighbors inside five square windows
//     (0.1 to 0.5 km) using a grid index, in parallel for large inputs.
//  4. EnumerateCategories: lists the non-derived fields charts may group by.
//
// Every stage returns a new dataset version; a failure is a *PipelineError
// and never comes with a partial result.
//
// # Usage
//
//	table, err := dataprocessing.Decode("specimens.csv", data)
//	if err != nil {
//	    return err
//	}
//	p := dataprocessing.NewPipeline(dataprocessing.DefaultOptions(), logger, nil)
//	result, err := p.Run(ctx, table)
//
// Chart feeds (BuildHistogram, BuildPie, BuildMap) shape a prepared dataset
// for the external chart layer.
package dataprocessing
