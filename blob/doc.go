// Package blob uploads exported dumps to object storage.
//
//	up, err := blob.NewMinio(blob.MinioOptions{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	    Bucket:    "dumps",
//	})
//	err = up.Upload(ctx, "snapshot-0-15.dsd", "/tmp/snapshot.dsd")
package blob
