// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package tilemerge

// This file contains various cloud account specific stuff; change this if
// you want to use the cloud functionality on your own site.

// Queue names
const (
	queueMerge = "rescribetilemerge"
)

// Storage bucket names
const (
	storageWip = "rescribetilemergeinprogress"
)

// Queue settings
const (
	queueVisibilityTimeout = "120"     // 2 minutes
	queueRetentionPeriod   = "1209600" // 14 days; max allowed by sqs
	queueWaitTime          = "20"
)
