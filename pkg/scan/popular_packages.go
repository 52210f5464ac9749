// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scan

// popularPackages is the frozen, process-wide set of well-known package
// names per ecosystem used as the typosquat reference corpus. It is this
// in-tree literal and nothing else; it is not loaded or refreshed at
// runtime. It covers the packages an attacker is most likely to
// impersonate.
var popularPackages = map[string]map[string]bool{
	"pypi": buildPackageSet([]string{
		"requests", "numpy", "pandas", "flask", "django", "boto3", "urllib3",
		"pyyaml", "click", "setuptools", "pip", "wheel", "certifi", "idna",
		"charset-normalizer", "six", "python-dateutil", "pytz", "jinja2",
		"markupsafe", "cryptography", "pillow", "scipy", "matplotlib",
		"sqlalchemy", "pytest", "attrs", "packaging", "typing-extensions",
		"protobuf", "grpcio", "pydantic", "fastapi", "uvicorn", "httpx",
		"aiohttp", "beautifulsoup4", "lxml", "scikit-learn", "torch",
		"tensorflow", "transformers", "openai", "anthropic", "langchain",
	}),
	"npm": buildPackageSet([]string{
		"react", "lodash", "express", "axios", "chalk", "commander",
		"request", "debug", "moment", "react-dom", "webpack", "babel-core",
		"typescript", "eslint", "prettier", "jest", "vue", "next", "redux",
		"rxjs", "uuid", "semver", "yargs", "dotenv", "async", "glob",
		"minimist", "tslib", "classnames", "prop-types", "core-js",
		"node-fetch", "ws", "socket.io", "mongoose", "pg", "mysql2",
		"body-parser", "cors", "helmet", "jsonwebtoken", "bcrypt",
	}),
}

func buildPackageSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
