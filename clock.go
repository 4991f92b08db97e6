// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package efs

import "time"

func nowMs() int64 { return time.Now().UnixMilli() }
