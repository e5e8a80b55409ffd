// Package mail renders outbound notification mail and hands it to a delivery
// sink. It contains the template store and compile cache, the deployment-mode
// address sanitizer, the dispatcher that pairs every enqueue with a counter
// increment, and the sinks: an in-process SMTP queue with retries, Kafka,
// a redis list and an in-memory outbox.
package mail
