package config

import "encoding/json"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 输入目录 ./svg，生成 ./svg.js（懒加载，旁路文件写回输入目录）；
// - 组件名采用仓库内置实现；
// - 选项包含全部键，值为安全中性默认值。
func DefaultTemplateConfig() Config {
	d := Defaults()
	f := false
	cfg := Config{
		InDir:      "svg",
		OutDir:     "",
		OutFile:    d.OutFile,
		Bundle:     &f,
		Param:      &f,
		FuncName:   d.FuncName,
		CheckNew:   &f,
		AppendExt:  &f,
		FetchBase:  "",
		KeyCase:    "",
		Sentinels:  d.Sentinels,
		Logging:    Logging{Level: "info", Dir: ""},
		Components: d.Components,
	}
	cfg.Hooks.ProcessSVG = json.RawMessage(`{
  "command": "",
  "timeout_seconds": 0,
  "env": {}
}`)
	cfg.Hooks.ProcessJS = json.RawMessage(`{
  "command": "",
  "timeout_seconds": 0,
  "env": {}
}`)
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "recursive": false,
  "exclude_dir_names": [".git", "node_modules"],
  "extensions": [".svg"]
}`)
	cfg.Options.Normalizer = json.RawMessage(`{
  "keep_xmlns": false,
  "keep_comments": false
}`)
	cfg.Options.Encoder = json.RawMessage(`{
  "res_vars": [],
  "max_len": 120,
  "let": true,
  "tpl": true,
  "break": [],
  "min_len": 4,
  "max_vars": 0
}`)
	// output_dir 由装配层按工件类型注入，这里不出现
	cfg.Options.Writer = json.RawMessage(`{
  "atomic": true,
  "flat": true,
  "skip_unchanged": false,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	return cfg
}
