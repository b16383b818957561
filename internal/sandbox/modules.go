package sandbox

// builtinModules are the virtual packages require resolves. They are small
// stand-ins that let typical starter code load and print, not full
// implementations.
var builtinModules = map[string]string{
	"react":            reactModule,
	"react-dom":        reactDOMModule,
	"react-dom/client": reactDOMModule,
	"path":             pathModule,
	"util":             utilModule,
	"lodash":           lodashModule,
}

const reactModule = `
function createElement(type, props) {
  var children = Array.prototype.slice.call(arguments, 2);
  return { type: type, props: Object.assign({}, props || {}, { children: children }) };
}
function Component(props) { this.props = props || {}; this.state = {}; }
Component.prototype.setState = function (patch) {
  this.state = Object.assign({}, this.state, typeof patch === 'function' ? patch(this.state) : patch);
};
module.exports = {
  version: '18.2.0',
  createElement: createElement,
  Component: Component,
  Fragment: 'Fragment',
  useState: function (initial) {
    var value = typeof initial === 'function' ? initial() : initial;
    return [value, function () {}];
  },
  useEffect: function () {},
  useMemo: function (fn) { return fn(); },
  useCallback: function (fn) { return fn; },
  useRef: function (initial) { return { current: initial }; }
};
module.exports.default = module.exports;
`

const reactDOMModule = `
function root() { return { render: function () {}, unmount: function () {} }; }
module.exports = {
  version: '18.2.0',
  render: function () {},
  createRoot: root
};
`

const pathModule = `
function normalize(p) {
  var abs = p.charAt(0) === '/';
  var out = [];
  p.split('/').forEach(function (seg) {
    if (seg === '' || seg === '.') return;
    if (seg === '..') { if (out.length && out[out.length - 1] !== '..') out.pop(); else if (!abs) out.push('..'); return; }
    out.push(seg);
  });
  var s = out.join('/');
  return abs ? '/' + s : (s || '.');
}
module.exports = {
  sep: '/',
  normalize: normalize,
  join: function () { return normalize(Array.prototype.slice.call(arguments).join('/')); },
  resolve: function () {
    var parts = Array.prototype.slice.call(arguments), acc = '';
    for (var i = parts.length - 1; i >= 0; i--) {
      acc = acc ? parts[i] + '/' + acc : parts[i];
      if (parts[i].charAt(0) === '/') break;
    }
    return normalize(acc.charAt(0) === '/' ? acc : '/' + acc);
  },
  basename: function (p, ext) {
    var b = p.replace(/\/+$/, '').split('/').pop();
    if (ext && b.slice(-ext.length) === ext) b = b.slice(0, -ext.length);
    return b;
  },
  dirname: function (p) {
    var i = p.replace(/\/+$/, '').lastIndexOf('/');
    if (i < 0) return '.';
    return i === 0 ? '/' : p.slice(0, i);
  },
  extname: function (p) {
    var b = p.split('/').pop(), i = b.lastIndexOf('.');
    return i <= 0 ? '' : b.slice(i);
  }
};
`

const utilModule = `
function inspect(v) {
  if (typeof v === 'string') return "'" + v + "'";
  if (typeof v === 'function') return '[Function]';
  try { return JSON.stringify(v); } catch (e) { return String(v); }
}
module.exports = {
  inspect: inspect,
  format: function (fmt) {
    var args = Array.prototype.slice.call(arguments, 1), i = 0;
    var s = String(fmt).replace(/%[sdjo%]/g, function (m) {
      if (m === '%%') return '%';
      if (i >= args.length) return m;
      var a = args[i++];
      if (m === '%d') return String(Number(a));
      if (m === '%j' || m === '%o') return JSON.stringify(a);
      return String(a);
    });
    for (; i < args.length; i++) s += ' ' + (typeof args[i] === 'string' ? args[i] : inspect(args[i]));
    return s;
  },
  isArray: Array.isArray
};
`

const lodashModule = `
module.exports = {
  chunk: function (arr, size) {
    var out = [];
    size = Math.max(1, size || 1);
    for (var i = 0; i < arr.length; i += size) out.push(arr.slice(i, i + size));
    return out;
  },
  uniq: function (arr) { return arr.filter(function (v, i) { return arr.indexOf(v) === i; }); },
  sum: function (arr) { return arr.reduce(function (a, b) { return a + b; }, 0); },
  range: function (start, end) {
    if (end === undefined) { end = start; start = 0; }
    var out = [];
    for (var i = start; i < end; i++) out.push(i);
    return out;
  },
  capitalize: function (s) { s = String(s); return s.charAt(0).toUpperCase() + s.slice(1).toLowerCase(); },
  groupBy: function (arr, fn) {
    return arr.reduce(function (acc, v) {
      var k = typeof fn === 'function' ? fn(v) : v[fn];
      (acc[k] = acc[k] || []).push(v);
      return acc;
    }, {});
  }
};
`
