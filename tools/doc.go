/*
包 tools 提供网关可调用工具的注册与执行。

Registry 按注册顺序保存 ToolDefinition，tools/list 的输出顺序即注册顺序。
Call 先依据 inputSchema.required 校验参数是否齐全，再同步执行工具函数。
校验失败返回 types.ErrToolValidation，未知工具返回 types.ErrToolNotFound，
二者都由 JSON-RPC 层映射为 -32000 "HTTP error: ..."。

内置工具：

  - digits / reduce_digits：数字根（反复求十进制各位之和直到只剩一位），
    基于 math/big，支持任意长度整数与数字字符串；小数按零方向截断。
  - echo：原样返回 text；非字符串值以 JSON 编码返回。
*/
package tools
