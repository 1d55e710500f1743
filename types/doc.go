// Copyright (c) mcpgate Authors.
// Licensed under the MIT License.

/*
Package types 提供网关各层共享的结构化错误定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 tools、mcp、rpc、api
等上层模块提供统一的错误契约，避免循环依赖。

# 核心类型

  - Error / ErrorCode: 结构化错误，含 HTTP 状态码与 Cause

# 主要能力

  - 错误工具链：AsError / IsErrorCode / GetErrorCode
  - 校验类错误判定：IsValidation（参数错误、未知工具、缺少必填参数）
*/
package types
