package jobs

import "strings"

// ARNName returns the resource name of an ARN.
//
// The resource part is everything after the fifth ":" and, within that,
// everything after the first "/":
//
//	arn:aws:batch:us-east-1:123456789012:job-queue/my-queue   -> my-queue
//	arn:aws:batch:us-east-1:123456789012:job-definition/x:3   -> x:3
//
// Plain names without ":" or "/" pass through unchanged.
func ARNName(arn string) string {
	parts := strings.SplitN(arn, ":", 6)
	resource := parts[len(parts)-1]

	parts = strings.SplitN(resource, "/", 2)
	return parts[len(parts)-1]
}
