/*
Package source opens the remote end of a transfer.

Open picks an implementation from the URL scheme:

  - http, https: HTTPSource streams a GET response. OpenTimeout bounds the
    connection and headers, ReadTimeout bounds each Read.
  - s3: S3Source streams an object with a ranged GetObject.
  - sim: SimulatedSource generates a deterministic pattern at a fixed rate,
    e.g. sim://?size=2MiB&rate=512KiB.

When TargetBytes is set, HTTP and S3 sources request only that prefix.
Failures to open are errors.TransportError values.
*/
package source
