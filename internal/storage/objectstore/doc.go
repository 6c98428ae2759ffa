// Package objectstore publishes release archives to S3-compatible storage
// (MinIO, AWS S3, Ceph RGW) so CI runners can hand them to testers.
package objectstore
