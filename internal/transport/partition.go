package transport

import (
	"hash/fnv"
	"strconv"
)

// Partition maps a deployment to one of n partitions. Every line of a
// deployment lands on the same partition so its order is kept.
func Partition(deploymentID string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(deploymentID))
	return int(h.Sum32() % uint32(n))
}

// Subject returns the stream subject a deployment's lines are published on.
func Subject(prefix string, partitions int, deploymentID string) string {
	return PartitionSubject(prefix, Partition(deploymentID, partitions)) + "." + deploymentID
}

// PartitionSubject returns the subject root shared by one partition.
func PartitionSubject(prefix string, partition int) string {
	return prefix + "." + strconv.Itoa(partition)
}

// PartitionFilter matches every deployment routed to partition.
func PartitionFilter(prefix string, partition int) string {
	return PartitionSubject(prefix, partition) + ".*"
}

// Channel returns the fan-out channel name for a deployment.
func Channel(prefix, deploymentID string) string {
	return prefix + deploymentID
}

// MessageID returns the stream de-duplication id of a line.
func MessageID(line LogLine) string {
	return line.DeploymentID + "-" + strconv.FormatInt(line.Sequence, 10)
}
