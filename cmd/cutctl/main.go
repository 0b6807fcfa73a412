// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package main

import "github.com/ZSC714725/cutmanager/internal/cli"

func main() {
	cli.Main()
}
